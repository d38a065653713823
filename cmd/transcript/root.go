package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
	"github.com/anatolykoptev/go_transcript/internal/history"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

// serviceFactory builds the acquisition service and a matching close func.
type serviceFactory func(ctx context.Context, verbose bool) (*toolutil.Service, func(), error)

type commandContext struct {
	factory serviceFactory
	verbose bool
	jsonOut bool

	svc     *toolutil.Service
	closeFn func()
}

func (c *commandContext) service(ctx context.Context) (*toolutil.Service, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, closeFn, err := c.factory(ctx, c.verbose)
	if err != nil {
		return nil, err
	}
	c.svc, c.closeFn = svc, closeFn
	return svc, nil
}

func (c *commandContext) close() {
	if c.closeFn != nil {
		c.closeFn()
	}
	c.svc, c.closeFn = nil, nil
}

func newRootCommand(factory serviceFactory) *cobra.Command {
	ctx := &commandContext{factory: factory}

	rootCmd := &cobra.Command{
		Use:           "transcript",
		Short:         "Fetch YouTube transcripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log pipeline progress to stderr")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOut, "json", false, "Write machine-readable JSON")

	for _, sub := range []*cobra.Command{
		newGetCommand(ctx),
		newBatchCommand(ctx),
		newHistoryCommand(ctx),
	} {
		closeAfter(sub, ctx)
		rootCmd.AddCommand(sub)
	}

	return rootCmd
}

// closeAfter releases the service when sub finishes, including on error,
// which PersistentPostRun would skip.
func closeAfter(sub *cobra.Command, ctx *commandContext) {
	run := sub.RunE
	sub.RunE = func(cmd *cobra.Command, args []string) error {
		defer ctx.close()
		return run(cmd, args)
	}
}

// newServiceFromEnv wires the service the same way the MCP server does.
// History failures are non-fatal.
func newServiceFromEnv(ctx context.Context, verbose bool) (*toolutil.Service, func(), error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := engine.LoadConfig()
	engine.InitCache(cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries, cfg.CacheCleanupInterval)

	orch, err := acquire.NewFromConfig(cfg, acquire.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	svc := &toolutil.Service{Orchestrator: orch, Logger: logger}

	store, err := history.Open(ctx, cfg.HistoryDSN)
	if err != nil {
		logger.Warn("history store unavailable", slog.Any("error", err))
		return svc, func() {}, nil
	}
	svc.History = store
	return svc, func() { _ = store.Close() }, nil
}
