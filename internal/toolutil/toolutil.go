// Package toolutil provides the acquisition flow shared by the MCP tools and
// the CLI: cache lookup, orchestration and history recording.
package toolutil

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/history"
)

// AcquireInput is the input for transcript_acquire.
type AcquireInput struct {
	URL       string   `json:"url" jsonschema:"YouTube video URL (youtu.be, watch?v=, embed, shorts)"`
	Languages []string `json:"languages,omitempty" jsonschema:"Caption language preference, most preferred first (default: server setting)"`
	SkipCache bool     `json:"skip_cache,omitempty" jsonschema:"Bypass the transcript cache"`
}

// AcquireOutput is the output of transcript_acquire.
type AcquireOutput struct {
	VideoID    string            `json:"video_id"`
	Transcript string            `json:"transcript"`
	Source     string            `json:"source"`
	Cached     bool              `json:"cached"`
	Attempts   []acquire.Attempt `json:"attempts"`
	Kind       string            `json:"kind,omitempty"`  // failure kind, empty on success
	Error      string            `json:"error,omitempty"` // failure summary, empty on success
}

// HistoryInput is the input for transcript_history.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum entries to return (default 20)"`
}

// HistoryEntry is one acquisition as reported by transcript_history.
type HistoryEntry struct {
	VideoID   string            `json:"video_id,omitempty"`
	URL       string            `json:"url"`
	OK        bool              `json:"ok"`
	Source    string            `json:"source,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Attempts  []acquire.Attempt `json:"attempts"`
	Chars     int               `json:"chars"`
	Cached    bool              `json:"cached"`
	CreatedAt string            `json:"created_at"` // RFC 3339, UTC
}

// HistoryOutput is the output of transcript_history.
type HistoryOutput struct {
	Entries []HistoryEntry `json:"entries"`
	Total   int            `json:"total"`
}

// ErrNoHistory is returned when no history store is configured.
var ErrNoHistory = errors.New("history store not configured")

// Service ties an Orchestrator to the transcript cache and an optional history store.
type Service struct {
	Orchestrator *acquire.Orchestrator
	History      history.Store
	Logger       *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NormLangs trims and dedupes langs case-insensitively, keeping the first
// spelling ("pt-BR" stays "pt-BR"); empty input yields def.
func NormLangs(langs, def []string) []string {
	seen := make(map[string]bool, len(langs))
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func transcriptKey(videoID string, langs []string) string {
	return engine.CacheKey("transcript", videoID, strings.ToLower(strings.Join(langs, ",")))
}

// Acquire returns a cached transcript when one exists, otherwise runs the
// orchestrator. Only successes are cached. Every call is recorded in history.
// On failure the output still carries the attempts, kind and error text,
// and the returned error is the result's *engine.AcquisitionError.
func (s *Service) Acquire(ctx context.Context, in AcquireInput) (AcquireOutput, error) {
	if strings.TrimSpace(in.URL) == "" {
		err := engine.Errorf(engine.KindInvalidReference, "acquire", "url is required")
		return AcquireOutput{
			Attempts: []acquire.Attempt{},
			Kind:     string(engine.KindInvalidReference),
			Error:    err.Error(),
		}, err
	}
	langs := NormLangs(in.Languages, s.Orchestrator.Languages())

	var key string
	if ref, err := sources.ResolveVideoRef(in.URL); err == nil {
		key = transcriptKey(ref.ID(), langs)
	}
	if key != "" && !in.SkipCache {
		if out, ok := engine.CacheLoadJSON[AcquireOutput](ctx, key); ok {
			out.Cached = true
			s.record(ctx, in.URL, acquire.Result{
				VideoID:    out.VideoID,
				Transcript: out.Transcript,
				Source:     acquire.Strategy(out.Source),
				Attempts:   out.Attempts,
			}, true)
			return out, nil
		}
	}

	res := s.Orchestrator.WithLanguages(langs).Acquire(ctx, in.URL)
	s.record(ctx, in.URL, res, false)

	out := AcquireOutput{
		VideoID:    res.VideoID,
		Transcript: res.Transcript,
		Source:     string(res.Source),
		Attempts:   res.Attempts,
	}
	if out.Attempts == nil {
		out.Attempts = []acquire.Attempt{}
	}
	if !res.OK() {
		err := res.Err()
		out.Kind = string(res.Kind)
		out.Error = err.Error()
		return out, err
	}
	if key != "" {
		engine.CacheStoreJSON(ctx, key, out)
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, rawURL string, res acquire.Result, cached bool) {
	if s.History == nil {
		return
	}
	// Recording must survive a cancelled request.
	if err := s.History.Record(context.WithoutCancel(ctx), history.FromResult(rawURL, res, cached)); err != nil {
		s.logger().Warn("history: record failed", slog.String("url", rawURL), slog.Any("error", err))
	}
}

// Recent lists the newest history entries.
func (s *Service) Recent(ctx context.Context, in HistoryInput) (HistoryOutput, error) {
	if s.History == nil {
		return HistoryOutput{}, ErrNoHistory
	}
	entries, err := s.History.Recent(ctx, in.Limit)
	if err != nil {
		return HistoryOutput{}, err
	}
	out := HistoryOutput{Entries: make([]HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, HistoryEntry{
			VideoID:   e.VideoID,
			URL:       e.URL,
			OK:        e.OK,
			Source:    e.Source,
			Kind:      e.Kind,
			Attempts:  e.Attempts,
			Chars:     e.Chars,
			Cached:    e.Cached,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	out.Total = len(out.Entries)
	return out, nil
}
