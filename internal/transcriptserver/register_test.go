package transcriptserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/acquire"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/history"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

type captionsFunc func(ref sources.VideoRef) (*sources.TranscriptTrack, error)

func (f captionsFunc) FetchCaptions(_ context.Context, ref sources.VideoRef, _ []string) (*sources.TranscriptTrack, error) {
	return f(ref)
}

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	engine.InitCache("", time.Minute, 100, time.Minute)

	store, err := history.OpenSQLite(ctx, filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	captions := captionsFunc(func(ref sources.VideoRef) (*sources.TranscriptTrack, error) {
		if strings.HasPrefix(ref.ID(), "fail") {
			return nil, engine.NewError(engine.KindNoCaptionsAvailable, "captions", sources.ErrNoCaptions)
		}
		return &sources.TranscriptTrack{Entries: []sources.CaptionEntry{{Text: "said in " + ref.ID()}}}, nil
	})
	quiet := slog.New(slog.DiscardHandler)
	svc := &toolutil.Service{
		Orchestrator: acquire.New(acquire.Config{}, captions, acquire.WithLogger(quiet)),
		History:      store,
		Logger:       quiet,
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "go_transcript", Version: "test"}, nil)
	RegisterTools(server, svc)

	st, ct := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestRegisterToolsListsBoth(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"transcript_acquire", "transcript_history"}, names)
	assert.Len(t, names, ToolCount)
}

func TestTranscriptAcquireTool(t *testing.T) {
	cs := connect(t)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "transcript_acquire",
		Arguments: map[string]any{"url": "https://youtu.be/mcpA1"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	var out toolutil.AcquireOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, "mcpA1", out.VideoID)
	assert.Equal(t, "said in mcpA1", out.Transcript)
	assert.Equal(t, "direct-captions", out.Source)
}

func TestTranscriptAcquireToolFailure(t *testing.T) {
	cs := connect(t)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "transcript_acquire",
		Arguments: map[string]any{"url": "https://youtu.be/failB2"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var out toolutil.AcquireOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, "failB2", out.VideoID)
	assert.Equal(t, "AllStrategiesExhausted", out.Kind)
	assert.Contains(t, out.Error, "NoCaptionsAvailable")
	assert.Empty(t, out.Transcript)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, acquire.StrategyDirectCaptions, out.Attempts[0].Strategy)
	assert.Equal(t, engine.KindNoCaptionsAvailable, out.Attempts[0].Kind)
}

func TestTranscriptHistoryTool(t *testing.T) {
	cs := connect(t)
	ctx := context.Background()
	for _, u := range []string{"https://youtu.be/histC3", "https://youtu.be/failD4"} {
		_, err := cs.CallTool(ctx, &mcp.CallToolParams{
			Name:      "transcript_acquire",
			Arguments: map[string]any{"url": u},
		})
		require.NoError(t, err)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "transcript_history",
		Arguments: map[string]any{"limit": 10},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	var out toolutil.HistoryOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	require.Equal(t, 2, out.Total)
	assert.Equal(t, "failD4", out.Entries[0].VideoID)
	assert.False(t, out.Entries[0].OK)
	assert.Equal(t, "histC3", out.Entries[1].VideoID)
	assert.True(t, out.Entries[1].OK)
}
