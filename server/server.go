// Package server registers the reports tools on an MCP server.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fabric-testbed/reports-mcp/backend"
	"github.com/fabric-testbed/reports-mcp/internal/logctx"
	"github.com/fabric-testbed/reports-mcp/output"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TokenInput is accepted by every tool: an optional credential overriding the
// caller's Authorization header and the server default.
type TokenInput struct {
	APIToken string `json:"api_token,omitempty" jsonschema:"Bearer token for this call only; overrides the request's Authorization header"`
}

type ListInput struct {
	APIToken string `json:"api_token,omitempty" jsonschema:"Bearer token for this call only; overrides the request's Authorization header"`
	Page     int    `json:"page,omitempty" jsonschema:"Page number (0-based) of the result set"`
	PerPage  int    `json:"per_page,omitempty" jsonschema:"Number of records per page"`
}

type UUIDInput struct {
	UUID     string `json:"uuid" jsonschema:"Record UUID"`
	APIToken string `json:"api_token,omitempty" jsonschema:"Bearer token for this call only; overrides the request's Authorization header"`
}

type SliverInput struct {
	SliceID  string         `json:"slice_id" jsonschema:"Slice ID"`
	SliverID string         `json:"sliver_id" jsonschema:"Sliver ID"`
	Payload  map[string]any `json:"payload" jsonschema:"Sliver data, forwarded to the reports API as-is"`
	APIToken string         `json:"api_token,omitempty" jsonschema:"Bearer token for this call only; overrides the request's Authorization header"`
}

type SliceInput struct {
	SliceID  string         `json:"slice_id" jsonschema:"Slice ID"`
	Payload  map[string]any `json:"payload" jsonschema:"Slice data, forwarded to the reports API as-is"`
	APIToken string         `json:"api_token,omitempty" jsonschema:"Bearer token for this call only; overrides the request's Authorization header"`
}

// Core runs the reports tools against one backend client. It holds no
// per-request state and is shared by all sessions.
type Core struct {
	API *backend.Client

	logger *slog.Logger
	now    func() time.Time
}

func NewCore(api *backend.Client, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logctx.Wrap(logger)
	if api == nil {
		api = backend.NewClient("", backend.WithLogger(logger))
	}
	return &Core{API: api, logger: logger, now: time.Now}
}

func (c *Core) Logger() *slog.Logger {
	return c.logger
}

func (c *Core) GetVersion(ctx context.Context, in TokenInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-version", get("version", in.APIToken, nil),
		"Failed to retrieve version data",
		func(v backend.VersionEnvelope) string {
			return output.Fields("API Version: %s, Reference: %s", v.Data.Version, v.Data.Reference)
		})
}

func (c *Core) GetUsers(ctx context.Context, in ListInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-users", get("users", in.APIToken, pageQuery(in)),
		"Failed to retrieve users data", count[backend.User]("users"))
}

func (c *Core) GetUserByUUID(ctx context.Context, in UUIDInput) *mcp.CallToolResult {
	const failure = "Failed to retrieve user data"
	if blank(in.UUID) {
		return c.reject(ctx, "get-user-by-uuid", failure, "uuid is required")
	}
	return fetch(ctx, c, "get-user-by-uuid", get(join("users", in.UUID), in.APIToken, nil),
		failure,
		func(u backend.User) string {
			return output.Fields("User: %s, Email: %s", u.UserName, u.UserEmail)
		})
}

func (c *Core) GetUserMemberships(ctx context.Context, in TokenInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-user-memberships", get("users/memberships", in.APIToken, nil),
		"Failed to retrieve user memberships data", count[backend.Membership]("user memberships"))
}

func (c *Core) GetSites(ctx context.Context, in TokenInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-sites", get("sites", in.APIToken, nil),
		"Failed to retrieve sites data", count[backend.Site]("sites"))
}

func (c *Core) GetHosts(ctx context.Context, in ListInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-hosts", get("hosts", in.APIToken, pageQuery(in)),
		"Failed to retrieve hosts data", count[backend.Host]("hosts"))
}

func (c *Core) GetSlivers(ctx context.Context, in ListInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-slivers", get("slivers", in.APIToken, pageQuery(in)),
		"Failed to retrieve slivers data", count[backend.Sliver]("slivers"))
}

func (c *Core) CreateUpdateSliver(ctx context.Context, in SliverInput) *mcp.CallToolResult {
	const failure = "Failed to create/update sliver"
	if blank(in.SliceID) || blank(in.SliverID) {
		return c.reject(ctx, "create-update-sliver", failure, "slice_id and sliver_id are required")
	}
	return fetch(ctx, c, "create-update-sliver", post(join("slivers", in.SliceID, in.SliverID), in.APIToken, payload(in.Payload)),
		failure, fixed[any]("Sliver created/updated successfully."))
}

func (c *Core) GetProjects(ctx context.Context, in ListInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-projects", get("projects", in.APIToken, pageQuery(in)),
		"Failed to retrieve projects data", count[backend.Project]("projects"))
}

func (c *Core) GetProjectByUUID(ctx context.Context, in UUIDInput) *mcp.CallToolResult {
	const failure = "Failed to retrieve project data"
	if blank(in.UUID) {
		return c.reject(ctx, "get-project-by-uuid", failure, "uuid is required")
	}
	return fetch(ctx, c, "get-project-by-uuid", get(join("projects", in.UUID), in.APIToken, nil),
		failure,
		func(p backend.Project) string {
			return output.Fields("Project: %s, Type: %s", p.ProjectName, p.ProjectType)
		})
}

func (c *Core) GetProjectMemberships(ctx context.Context, in TokenInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-project-memberships", get("projects/memberships", in.APIToken, nil),
		"Failed to retrieve project memberships data", count[backend.Membership]("project memberships"))
}

func (c *Core) GetSlices(ctx context.Context, in ListInput) *mcp.CallToolResult {
	return fetch(ctx, c, "get-slices", get("slices", in.APIToken, pageQuery(in)),
		"Failed to retrieve slices data", count[backend.Slice]("slices"))
}

func (c *Core) CreateUpdateSlice(ctx context.Context, in SliceInput) *mcp.CallToolResult {
	const failure = "Failed to create/update slice"
	if blank(in.SliceID) {
		return c.reject(ctx, "create-update-slice", failure, "slice_id is required")
	}
	return fetch(ctx, c, "create-update-slice", post(join("slices", in.SliceID), in.APIToken, payload(in.Payload)),
		failure, fixed[any]("Slice created/updated successfully."))
}

// fetch performs one backend call and normalizes its outcome. It never
// returns nil and never panics: every failure becomes a failure result.
func fetch[T any](ctx context.Context, c *Core, tool string, req backend.Request, failure string, summarize func(T) string) (res *mcp.CallToolResult) {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: tool})
	start := c.now()

	defer func() {
		if p := recover(); p != nil {
			c.logger.ErrorContext(ctx, "tool call",
				"outcome", "panic",
				"error", fmt.Sprint(p),
				"duration_ms", c.now().Sub(start).Milliseconds(),
			)
			res = output.Failure(failure)
		}
	}()

	v, err := backend.Do[T](ctx, c.API, req)
	if err != nil {
		c.logger.InfoContext(ctx, "tool call",
			"outcome", "error",
			"error", err.Error(),
			"duration_ms", c.now().Sub(start).Milliseconds(),
		)
		return output.Failure(failure)
	}

	text := summarize(v)
	c.logger.InfoContext(ctx, "tool call",
		"outcome", "success",
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return output.Text(text)
}

func (c *Core) reject(ctx context.Context, tool, failure, reason string) *mcp.CallToolResult {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: tool})
	c.logger.InfoContext(ctx, "tool call",
		"outcome", "rejected",
		"error", reason,
	)
	return output.Failure(failure)
}

func count[T any](noun string) func(backend.List[T]) string {
	return func(l backend.List[T]) string { return output.Count(len(l.Data), noun) }
}

func fixed[T any](text string) func(T) string {
	return func(T) string { return text }
}

func get(path, token string, query url.Values) backend.Request {
	return backend.Request{Method: http.MethodGet, Path: path, Query: query, Token: token}
}

func post(path, token string, body any) backend.Request {
	return backend.Request{Method: http.MethodPost, Path: path, Body: body, Token: token}
}

// payload keeps an absent payload as an empty JSON object so the backend
// always receives a body on create/update.
func payload(p map[string]any) any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

func pageQuery(in ListInput) url.Values {
	q := url.Values{}
	if in.Page > 0 {
		q.Set("page", strconv.Itoa(in.Page))
	}
	if in.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(in.PerPage))
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

func join(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(strings.TrimSpace(s)))
	}
	return b.String()
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
