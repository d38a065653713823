package toolutil

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/history"
)

type stubCaptions struct {
	calls atomic.Int32
	err   error
	langs []string
}

func (s *stubCaptions) FetchCaptions(_ context.Context, ref sources.VideoRef, langs []string) (*sources.TranscriptTrack, error) {
	s.calls.Add(1)
	s.langs = langs
	if s.err != nil {
		return nil, s.err
	}
	return &sources.TranscriptTrack{Entries: []sources.CaptionEntry{{Text: "captions for " + ref.ID()}}}, nil
}

func newService(t *testing.T, captions *stubCaptions) *Service {
	t.Helper()
	engine.InitCache("", time.Minute, 100, time.Minute)
	store, err := history.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	quiet := slog.New(slog.DiscardHandler)
	return &Service{
		Orchestrator: acquire.New(acquire.Config{}, captions, acquire.WithLogger(quiet)),
		History:      store,
		Logger:       quiet,
	}
}

func TestNormLangs(t *testing.T) {
	def := []string{"en"}
	assert.Equal(t, def, NormLangs(nil, def))
	assert.Equal(t, def, NormLangs([]string{" ", ""}, def))
	assert.Equal(t, []string{"DE", "en"}, NormLangs([]string{" DE", "en", "de"}, def))
	assert.Equal(t, []string{"pt-BR", "zh-Hans"}, NormLangs([]string{"pt-BR", "zh-Hans", "PT-br"}, def))
}

// regionCaptions serves a human pt-BR track next to an auto-generated English one.
type regionCaptions struct{}

func (regionCaptions) FetchCaptions(_ context.Context, _ sources.VideoRef, langs []string) (*sources.TranscriptTrack, error) {
	tracks := []sources.TrackInfo{
		{LanguageCode: "en", AutoGenerated: true},
		{LanguageCode: "pt-BR"},
	}
	track, ok := sources.SelectTrack(tracks, langs)
	if !ok {
		return nil, engine.NewError(engine.KindNoCaptionsAvailable, "captions", sources.ErrNoCaptions)
	}
	return &sources.TranscriptTrack{
		LanguageCode:  track.LanguageCode,
		AutoGenerated: track.AutoGenerated,
		Entries:       []sources.CaptionEntry{{Text: "legenda " + track.LanguageCode}},
	}, nil
}

func TestServiceAcquireRegionLanguage(t *testing.T) {
	s := newService(t, &stubCaptions{})
	s.Orchestrator = acquire.New(acquire.Config{}, regionCaptions{}, acquire.WithLogger(slog.New(slog.DiscardHandler)))

	for _, lang := range []string{"pt-BR", "pt-br"} {
		out, err := s.Acquire(context.Background(), AcquireInput{
			URL:       "https://youtu.be/regionJ1",
			Languages: []string{lang},
			SkipCache: true,
		})
		require.NoError(t, err, lang)
		assert.Equal(t, "legenda pt-BR", out.Transcript, lang)
	}
}

func TestServiceAcquireCachesSuccess(t *testing.T) {
	captions := &stubCaptions{}
	s := newService(t, captions)
	ctx := context.Background()

	out, err := s.Acquire(ctx, AcquireInput{URL: "https://youtu.be/cacheA1"})
	require.NoError(t, err)
	assert.Equal(t, "cacheA1", out.VideoID)
	assert.Equal(t, "captions for cacheA1", out.Transcript)
	assert.Equal(t, "direct-captions", out.Source)
	assert.False(t, out.Cached)
	assert.NotNil(t, out.Attempts)

	again, err := s.Acquire(ctx, AcquireInput{URL: "https://www.youtube.com/watch?v=cacheA1"})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, out.Transcript, again.Transcript)
	assert.EqualValues(t, 1, captions.calls.Load())

	_, err = s.Acquire(ctx, AcquireInput{URL: "https://youtu.be/cacheA1", SkipCache: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, captions.calls.Load())

	h, err := s.Recent(ctx, HistoryInput{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 3, h.Total)
	assert.False(t, h.Entries[0].Cached)
	assert.True(t, h.Entries[1].Cached)
	_, err = time.Parse(time.RFC3339, h.Entries[0].CreatedAt)
	assert.NoError(t, err)
}

func TestServiceAcquireLanguagesKeyTheCache(t *testing.T) {
	captions := &stubCaptions{}
	s := newService(t, captions)
	ctx := context.Background()

	_, err := s.Acquire(ctx, AcquireInput{URL: "https://youtu.be/langB2", Languages: []string{"DE"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"DE"}, captions.langs)

	out, err := s.Acquire(ctx, AcquireInput{URL: "https://youtu.be/langB2"})
	require.NoError(t, err)
	assert.False(t, out.Cached, "different language preference must miss")
	assert.Equal(t, []string{"en"}, captions.langs)
}

func TestServiceAcquireFailure(t *testing.T) {
	captions := &stubCaptions{err: engine.NewError(engine.KindNoCaptionsAvailable, "captions", sources.ErrNoCaptions)}
	s := newService(t, captions)
	ctx := context.Background()

	out, err := s.Acquire(ctx, AcquireInput{URL: "https://youtu.be/failC3"})
	require.Error(t, err)
	assert.Equal(t, engine.KindAllStrategiesExhausted, engine.KindOf(err))
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, engine.KindNoCaptionsAvailable, out.Attempts[0].Kind)
	assert.Equal(t, "AllStrategiesExhausted", out.Kind)
	assert.Equal(t, err.Error(), out.Error)

	// failures are not cached
	_, err = s.Acquire(ctx, AcquireInput{URL: "https://youtu.be/failC3"})
	require.Error(t, err)
	assert.EqualValues(t, 2, captions.calls.Load())

	h, err := s.Recent(ctx, HistoryInput{})
	require.NoError(t, err)
	require.Len(t, h.Entries, 2)
	assert.False(t, h.Entries[0].OK)
	assert.Equal(t, "AllStrategiesExhausted", h.Entries[0].Kind)
}

func TestServiceAcquireInvalid(t *testing.T) {
	s := newService(t, &stubCaptions{})

	_, err := s.Acquire(context.Background(), AcquireInput{URL: "  "})
	assert.Equal(t, engine.KindInvalidReference, engine.KindOf(err))

	_, err = s.Acquire(context.Background(), AcquireInput{URL: "https://vimeo.com/1"})
	assert.Equal(t, engine.KindInvalidReference, engine.KindOf(err))
}

func TestServiceNoHistory(t *testing.T) {
	s := &Service{Orchestrator: acquire.New(acquire.Config{}, &stubCaptions{})}
	_, err := s.Recent(context.Background(), HistoryInput{})
	assert.True(t, errors.Is(err, ErrNoHistory))
}
