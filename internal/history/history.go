// Package history records transcript acquisitions so operators can see which
// strategy served each video and why the others failed.
package history

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DefaultLimit is used by Recent when limit <= 0.
const DefaultLimit = 20

// Entry is one recorded acquisition.
type Entry struct {
	ID        string            `json:"id"`
	VideoID   string            `json:"video_id,omitempty"`
	URL       string            `json:"url"`
	OK        bool              `json:"ok"`
	Source    string            `json:"source,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Attempts  []acquire.Attempt `json:"attempts"`
	Chars     int               `json:"chars"`
	Cached    bool              `json:"cached"`
	CreatedAt time.Time         `json:"created_at"`
}

// FromResult builds an entry for an Acquire outcome.
func FromResult(rawURL string, res acquire.Result, cached bool) Entry {
	attempts := res.Attempts
	if attempts == nil {
		attempts = []acquire.Attempt{}
	}
	return Entry{
		ID:        uuid.NewString(),
		VideoID:   res.VideoID,
		URL:       rawURL,
		OK:        res.OK(),
		Source:    string(res.Source),
		Kind:      string(res.Kind),
		Attempts:  attempts,
		Chars:     len(res.Transcript),
		Cached:    cached,
		CreatedAt: time.Now().UTC(),
	}
}

// Store persists entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open picks a backend from dsn:
//
//	postgres://... or postgresql://...  PostgreSQL via pgxpool
//	sqlite:<path>, <path> or ""         SQLite (default ~/.go_transcript/history.db)
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	path := strings.TrimPrefix(dsn, "sqlite:")
	if path == "" {
		path = defaultSQLitePath()
	}
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".go_transcript", "history.db")
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func prepare(e *Entry) ([]byte, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Attempts == nil {
		e.Attempts = []acquire.Attempt{}
	}
	b, err := json.Marshal(e.Attempts)
	if err != nil {
		return nil, fmt.Errorf("history: encode attempts: %w", err)
	}
	return b, nil
}

func decodeAttempts(raw string) ([]acquire.Attempt, error) {
	var out []acquire.Attempt
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("history: decode attempts: %w", err)
	}
	return out, nil
}
