package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
)

func openTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFromResult(t *testing.T) {
	ok := acquire.Result{VideoID: "abc123", Transcript: "hello world", Source: acquire.StrategySpeech,
		Attempts: []acquire.Attempt{{Strategy: acquire.StrategyDirectCaptions, Kind: engine.KindNoCaptionsAvailable, Message: "none"}}}
	e := FromResult("https://youtu.be/abc123", ok, false)

	assert.NotEmpty(t, e.ID)
	assert.True(t, e.OK)
	assert.Equal(t, "speech-transcription", e.Source)
	assert.Empty(t, e.Kind)
	assert.Equal(t, 11, e.Chars)
	assert.Len(t, e.Attempts, 1)
	assert.WithinDuration(t, time.Now(), e.CreatedAt, time.Minute)

	failed := FromResult("nope", acquire.Result{Kind: engine.KindInvalidReference}, false)
	assert.False(t, failed.OK)
	assert.Equal(t, "InvalidReference", failed.Kind)
	assert.NotNil(t, failed.Attempts)
}

func TestSQLiteRecordAndRecent(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		err := s.Record(ctx, Entry{
			VideoID:   id,
			URL:       "https://youtu.be/" + id,
			OK:        i != 1,
			Source:    "direct-captions",
			Attempts:  []acquire.Attempt{{Strategy: acquire.StrategyDirectCaptions, Kind: engine.KindNetworkFailure, Message: "timeout"}},
			Chars:     100 * i,
			Cached:    i == 2,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].VideoID)
	assert.Equal(t, "second", got[1].VideoID)

	assert.True(t, got[0].OK)
	assert.True(t, got[0].Cached)
	assert.Equal(t, 200, got[0].Chars)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Second)))
	assert.False(t, got[1].OK)
	require.Len(t, got[1].Attempts, 1)
	assert.Equal(t, engine.KindNetworkFailure, got[1].Attempts[0].Kind)
	assert.NotEmpty(t, got[1].ID, "ids are generated when missing")
}

func TestSQLiteRecentDefaultLimit(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	for i := 0; i < DefaultLimit+5; i++ {
		require.NoError(t, s.Record(ctx, Entry{URL: "u"}))
	}
	got, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
	assert.Empty(t, got[0].Attempts)
}

func TestSQLiteDuplicateID(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{ID: "same", URL: "u"}))
	assert.Error(t, s.Record(ctx, Entry{ID: "same", URL: "u"}))
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Entry{VideoID: "abc123", URL: "u"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc123", got[0].VideoID)
}

func TestSQLiteRecordCanceled(t *testing.T) {
	s := openTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Record(ctx, Entry{URL: "u"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOpenDefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}
