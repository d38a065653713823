package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent acquisitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service(cmd.Context())
			if err != nil {
				return err
			}
			out, err := svc.Recent(cmd.Context(), toolutil.HistoryInput{Limit: limit})
			if err != nil {
				return err
			}
			if ctx.jsonOut {
				return writeJSON(cmd, out)
			}
			if out.Total == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No acquisitions recorded")
				return nil
			}
			rows := make([][]string, 0, len(out.Entries))
			for _, e := range out.Entries {
				result := e.Source
				if !e.OK {
					result = e.Kind
				}
				if e.Cached {
					result += " (cached)"
				}
				when := e.CreatedAt
				if ts, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
					when = ts.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					when,
					e.VideoID,
					result,
					strconv.Itoa(len(e.Attempts)),
					strconv.Itoa(e.Chars),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"When", "Video", "Result", "Attempts", "Chars"}, rows, 3, 4))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	return cmd
}
