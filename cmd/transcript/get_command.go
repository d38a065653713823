package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var (
		langs   []string
		outPath string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch the transcript of one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd.Context())
			if err != nil {
				return err
			}
			out, err := svc.Acquire(cmd.Context(), toolutil.AcquireInput{
				URL:       args[0],
				Languages: langs,
				SkipCache: noCache,
			})
			if err != nil {
				writeAttempts(cmd.ErrOrStderr(), out.Attempts)
				return err
			}
			if ctx.jsonOut {
				return writeJSON(cmd, out)
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(out.Transcript+"\n"), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d chars via %s -> %s\n", out.VideoID, len(out.Transcript), out.Source, outPath)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Transcript)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Caption language preference, most preferred first")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the transcript to a file instead of stdout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the transcript cache")
	return cmd
}

func writeAttempts(w io.Writer, attempts []acquire.Attempt) {
	for _, a := range attempts {
		fmt.Fprintf(w, "  %s\n", a)
	}
}
