package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ServerOptions struct {
	// Name is the MCP server implementation name. Default: "fabric-reports".
	Name string
	// Version is the MCP server implementation version. Default: "1.0.0".
	Version string
}

// toolNames lists the registered tools in registration order.
var toolNames = []string{
	"get-version",
	"get-users",
	"get-user-by-uuid",
	"get-user-memberships",
	"get-sites",
	"get-hosts",
	"get-slivers",
	"create-update-sliver",
	"get-projects",
	"get-project-by-uuid",
	"get-project-memberships",
	"get-slices",
	"create-update-slice",
}

var readOnly = &mcp.ToolAnnotations{ReadOnlyHint: true}

// NewMCPServer builds the MCP server with every reports tool registered. The
// returned server is safe to connect to any number of transports.
func NewMCPServer(core *Core, opts ...ServerOptions) *mcp.Server {
	name := "fabric-reports"
	version := "1.0.0"
	if len(opts) > 0 {
		if opts[0].Name != "" {
			name = opts[0].Name
		}
		if opts[0].Version != "" {
			version = opts[0].Version
		}
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, &mcp.ServerOptions{
		Instructions: instructions,
		Logger:       core.Logger(),
	})
	addSystemPrompt(srv)

	mcp.AddTool(srv, &mcp.Tool{Name: "get-version", Description: "Get API version", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in TokenInput) (*mcp.CallToolResult, any, error) {
			return core.GetVersion(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-users", Description: "Get users", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, any, error) {
			return core.GetUsers(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-user-by-uuid", Description: "Get specific user by UUID", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in UUIDInput) (*mcp.CallToolResult, any, error) {
			return core.GetUserByUUID(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-user-memberships", Description: "Get user memberships", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in TokenInput) (*mcp.CallToolResult, any, error) {
			return core.GetUserMemberships(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-sites", Description: "Get sites", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in TokenInput) (*mcp.CallToolResult, any, error) {
			return core.GetSites(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-hosts", Description: "Get hosts", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, any, error) {
			return core.GetHosts(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-slivers", Description: "Get slivers", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, any, error) {
			return core.GetSlivers(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create-update-sliver",
		Description: "Create/Update Sliver. This is a WRITE operation on the reports database.",
		Annotations: &mcp.ToolAnnotations{IdempotentHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SliverInput) (*mcp.CallToolResult, any, error) {
		return core.CreateUpdateSliver(ctx, in), nil, nil
	})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-projects", Description: "Get projects", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, any, error) {
			return core.GetProjects(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-project-by-uuid", Description: "Get project by UUID", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in UUIDInput) (*mcp.CallToolResult, any, error) {
			return core.GetProjectByUUID(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-project-memberships", Description: "Get project memberships", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in TokenInput) (*mcp.CallToolResult, any, error) {
			return core.GetProjectMemberships(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{Name: "get-slices", Description: "Get slices", Annotations: readOnly},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, any, error) {
			return core.GetSlices(ctx, in), nil, nil
		})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create-update-slice",
		Description: "Create/Update a slice. This is a WRITE operation on the reports database.",
		Annotations: &mcp.ToolAnnotations{IdempotentHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SliceInput) (*mcp.CallToolResult, any, error) {
		return core.CreateUpdateSlice(ctx, in), nil, nil
	})

	return srv
}

func RunStdio(ctx context.Context, core *Core, opts ...ServerOptions) error {
	server := NewMCPServer(core, opts...)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("run mcp stdio server: %w", err)
	}
	return nil
}
