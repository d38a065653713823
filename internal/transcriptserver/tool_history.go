package transcriptserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

func registerHistory(server *mcp.Server, svc *toolutil.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_history",
		Description: "List recent transcript acquisitions, newest first: video id, success, winning strategy, failure kind and per-strategy attempts.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input toolutil.HistoryInput) (*mcp.CallToolResult, *toolutil.HistoryOutput, error) {
		out, err := svc.Recent(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, &out, nil
	})
}
