package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

type batchItem struct {
	URL    string                 `json:"url"`
	OK     bool                   `json:"ok"`
	Kind   string                 `json:"kind,omitempty"`
	Error  string                 `json:"error,omitempty"`
	Output toolutil.AcquireOutput `json:"output"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		concurrency int
		langs       []string
	)

	cmd := &cobra.Command{
		Use:   "batch <file|->",
		Short: "Fetch transcripts for every URL in a file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := readURLs(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			svc, err := ctx.service(cmd.Context())
			if err != nil {
				return err
			}
			items := runBatch(cmd.Context(), svc, urls, langs, concurrency)

			failed := 0
			for _, it := range items {
				if !it.OK {
					failed++
				}
			}
			if ctx.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, it := range items {
					if err := enc.Encode(it); err != nil {
						return err
					}
				}
			} else {
				rows := make([][]string, 0, len(items))
				for _, it := range items {
					status := "ok"
					detail := fmt.Sprintf("%s, %d chars", it.Output.Source, len(it.Output.Transcript))
					if !it.OK {
						status = "FAIL"
						detail = it.Kind
					}
					rows = append(rows, []string{status, it.Output.VideoID, detail, it.URL})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Video", "Detail", "URL"}, rows))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d videos failed", failed, len(items))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 2, "Videos processed in parallel")
	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "Caption language preference, most preferred first")
	return cmd
}

// runBatch acquires every URL. Individual failures never cancel the rest;
// results keep input order.
func runBatch(ctx context.Context, svc *toolutil.Service, urls, langs []string, concurrency int) []batchItem {
	if concurrency < 1 {
		concurrency = 1
	}
	items := make([]batchItem, len(urls))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			out, err := svc.Acquire(ctx, toolutil.AcquireInput{URL: u, Languages: langs})
			items[i] = batchItem{URL: u, OK: err == nil, Output: out}
			if err != nil {
				items[i].Kind = string(engine.KindOf(err))
				items[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// readURLs reads non-blank, non-comment lines from path, or stdin for "-".
func readURLs(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%s: no URLs", path)
	}
	return urls, nil
}
