package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailwarm/internal/dispatch"
	"github.com/teemow/mailwarm/internal/server"
)

// Resource URIs.
const (
	URIHealth  = "mailwarm://health"
	URIMethods = "mailwarm://methods"
)

// Module is the part of the dispatcher the resources read from.
// *dispatch.Dispatcher implements it.
type Module interface {
	HealthCheck() map[string]server.HealthStatus
	MethodList() []dispatch.MethodInfo
}

// RegisterModuleResources registers the health report and the method list
// as read-only resources.
func RegisterModuleResources(s *mcpserver.MCPServer, m Module) {
	healthResource := mcp.NewResource(
		URIHealth,
		"Session Health",
		mcp.WithResourceDescription("Component health of the warm Gmail session"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(healthResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleHealth(ctx, request, m)
	})

	methodsResource := mcp.NewResource(
		URIMethods,
		"Method List",
		mcp.WithResourceDescription("Registered methods with their parameters"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(methodsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleMethods(ctx, request, m)
	})
}

// handleHealth returns the session's component report
func handleHealth(_ context.Context, request mcp.ReadResourceRequest, m Module) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, m.HealthCheck())
}

// handleMethods returns the module identity and its methods
func handleMethods(_ context.Context, request mcp.ReadResourceRequest, m Module) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, map[string]any{
		"name":    dispatch.ModuleName,
		"version": dispatch.ModuleVersion,
		"methods": m.MethodList(),
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource %s: %w", uri, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
