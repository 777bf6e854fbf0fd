package audience_tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/audiencer/audiencer/internal/instrumentation"
)

// toolServer registers tools on the MCP server with every handler wrapped
// in invocation metrics. A nil metrics recorder registers handlers as-is.
type toolServer struct {
	s       *mcpserver.MCPServer
	metrics *instrumentation.Metrics
}

func (ts toolServer) AddTool(tool mcp.Tool, handler mcpserver.ToolHandlerFunc) {
	ts.s.AddTool(tool, instrumented(tool.Name, ts.metrics, handler))
}

// instrumented wraps a tool handler with invocation metrics. A result
// carrying IsError counts as an error even though the handler returns it
// without a Go error.
func instrumented(toolName string, metrics *instrumentation.Metrics, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		metrics.RecordToolInvocation(ctx, toolName, status, duration)

		return result, err
	}
}
