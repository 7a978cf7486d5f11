package server

import (
	"context"
	_ "embed"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	systemPromptName        = "fabric-reports-system"
	systemPromptDescription = "System rules for querying FABRIC Reports via MCP"

	instructions = "Proxy for accessing FABRIC Reports API data via LLM tool calls."
)

//go:embed system.md
var systemText string

func addSystemPrompt(srv *mcp.Server) {
	text := strings.TrimSpace(systemText)
	srv.AddPrompt(&mcp.Prompt{Name: systemPromptName, Description: systemPromptDescription},
		func(context.Context, *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return &mcp.GetPromptResult{
				Description: systemPromptDescription,
				Messages: []*mcp.PromptMessage{
					{Role: "user", Content: &mcp.TextContent{Text: text}},
				},
			}, nil
		})
}
