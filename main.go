// go_transcript: YouTube transcript acquisition MCP server.
//
// Exposes two MCP tools: transcript_acquire and transcript_history.
// Runs as HTTP MCP server or stdio transport. The same pipeline is available
// from the command line via cmd/transcript.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
	"github.com/anatolykoptev/go_transcript/internal/history"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
	"github.com/anatolykoptev/go_transcript/internal/transcriptserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8891")
)

func main() {
	svc, closeFn := initService()
	defer closeFn()

	slog.Info("starting go_transcript",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_transcript",
		Version: version,
	}, nil)

	transcriptserver.RegisterTools(server, svc)
	slog.Info("tools registered", slog.Int("count", transcriptserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_transcript",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initService() (*toolutil.Service, func()) {
	c := engine.LoadConfig()
	engine.InitCache(c.RedisURL, c.CacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)

	orch, err := acquire.NewFromConfig(c)
	if err != nil {
		slog.Error("acquire init failed", slog.Any("error", err))
		os.Exit(1)
	}
	svc := &toolutil.Service{Orchestrator: orch, Logger: slog.Default()}

	store, err := history.Open(context.Background(), c.HistoryDSN)
	if err != nil {
		slog.Warn("history store init failed, running without history", slog.Any("error", err))
		return svc, func() {}
	}
	svc.History = store
	slog.Info("history store initialized")
	return svc, func() { _ = store.Close() }
}
