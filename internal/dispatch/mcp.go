package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterTools exposes every method as an MCP tool. Each tool answers with
// the JSON response envelope; failed calls are flagged as tool errors.
func (d *Dispatcher) RegisterTools(s *mcpserver.MCPServer) {
	for _, m := range d.Methods() {
		name := m.Name()
		s.AddTool(m.Tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return d.toolResult(d.Call(ctx, name, request.GetArguments())), nil
		})
	}
}

func (d *Dispatcher) toolResult(resp Response) *mcp.CallToolResult {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format output: %v", err))
	}
	if !resp.OK {
		return mcp.NewToolResultError(string(data))
	}
	return mcp.NewToolResultText(string(data))
}
