package transcriptserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

func registerAcquire(server *mcp.Server, svc *toolutil.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_acquire",
		Description: "Get the spoken-text transcript of a YouTube video. Tries direct captions first, then captions through the configured proxy relay, then audio download plus speech-to-text. Returns the transcript, the strategy that produced it and every failed attempt. Results are cached unless skip_cache is set.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input toolutil.AcquireInput) (*mcp.CallToolResult, toolutil.AcquireOutput, error) {
		out, err := svc.Acquire(ctx, input)
		if err != nil {
			return failureResult(out), out, nil
		}
		return nil, out, nil
	})
}

// failureResult reports a failed acquisition as a tool error that still
// carries video_id, kind and the per-strategy attempts.
func failureResult(out toolutil.AcquireOutput) *mcp.CallToolResult {
	data, err := json.Marshal(out)
	if err != nil {
		data = []byte(out.Error)
	}
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
		StructuredContent: out,
	}
}
