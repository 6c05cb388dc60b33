package main

import (
	"context"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var facts = map[string]string{
	"caesar":    "Julius Caesar was assassinated on the Ides of March, 44 BC.",
	"alexander": "Alexander the Great was tutored by Aristotle.",
}

type lookupParams struct {
	Topic string `json:"topic" jsonschema:"Topic to look up"`
}

func lookup(ctx context.Context, req *mcp.CallToolRequest, params *lookupParams) (*mcp.CallToolResult, any, error) {
	fact, ok := facts[strings.ToLower(params.Topic)]
	if !ok {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "unknown topic: " + params.Topic}},
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fact}},
	}, nil, nil
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "facts",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lookup",
		Description: "Look up a historical fact by topic",
	}, lookup)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
