package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailwarm/internal/gmail"
)

func TestRegisterTools(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	addInbox(srv, "m1", "Hello", "hi there", gmail.LabelInbox)

	s := mcpserver.NewMCPServer(ModuleName, ModuleVersion, mcpserver.WithToolCapabilities(true))
	d.RegisterTools(s)

	tools := s.ListTools()
	require.Len(t, tools, 7)
	for _, m := range d.Methods() {
		assert.Contains(t, tools, m.Name())
	}

	call := func(name string, args map[string]any) *mcp.CallToolResult {
		t.Helper()
		tool, ok := tools[name]
		require.True(t, ok)
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		result, err := tool.Handler(context.Background(), req)
		require.NoError(t, err)
		return result
	}

	t.Run("success", func(t *testing.T) {
		result := call(MethodInbox, map[string]any{"limit": float64(5)})
		assert.False(t, result.IsError)

		var resp Response
		require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &resp))
		assert.True(t, resp.OK)
		assert.EqualValues(t, 1, resp.Result["count"])
	})

	t.Run("failure", func(t *testing.T) {
		result := call(MethodSearch, map[string]any{})
		assert.True(t, result.IsError)

		var resp Response
		require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &resp))
		assert.False(t, resp.OK)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeMissingParameter, resp.Error.Code)
		assert.Equal(t, "query", resp.Error.Param)
	})
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}
