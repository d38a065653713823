// Package transcriptserver exposes transcript acquisition as MCP tools.
package transcriptserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 2

// RegisterTools registers transcript_acquire and transcript_history on server.
func RegisterTools(server *mcp.Server, svc *toolutil.Service) {
	registerAcquire(server, svc)
	registerHistory(server, svc)
}
