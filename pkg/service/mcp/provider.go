package mcp

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/tool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// Gemini function names allow letters, digits, underscores, dots and dashes
var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

const maxFunctionNameLength = 64

// Provider exposes the tools of connected MCP servers as one tool.Tool.
// Function names are prefixed with the server name so they never shadow the
// built-in tools.
type Provider struct {
	client *Client
	tools  map[string]*remoteTool
	order  []string
}

type remoteTool struct {
	serverName string
	toolName   string
	funcDecl   *genai.FunctionDeclaration
}

func NewProvider(client *Client) *Provider {
	return &Provider{
		client: client,
		tools:  make(map[string]*remoteTool),
	}
}

// FunctionName returns the function name the model sees for a server tool
func FunctionName(serverName, toolName string) string {
	name := invalidNameChars.ReplaceAllString("mcp_"+serverName+"_"+toolName, "_")
	if len(name) > maxFunctionNameLength {
		name = name[:maxFunctionNameLength]
	}
	return name
}

func (p *Provider) Flags() []cli.Flag {
	return nil
}

// Init registers the tools of every connected server
func (p *Provider) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if p.client == nil {
		return false, nil
	}

	for _, serverName := range p.client.Servers() {
		tools, err := p.client.Tools(serverName)
		if err != nil {
			return false, err
		}

		for _, t := range tools {
			fd, err := toFunctionDeclaration(serverName, t)
			if err != nil {
				return false, goerr.Wrap(err, "failed to convert tool",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}
			if _, dup := p.tools[fd.Name]; dup {
				return false, goerr.New("duplicated MCP function name", goerr.V("name", fd.Name))
			}

			p.tools[fd.Name] = &remoteTool{
				serverName: serverName,
				toolName:   t.Name,
				funcDecl:   fd,
			}
			p.order = append(p.order, fd.Name)
		}
	}

	return len(p.tools) > 0, nil
}

func toFunctionDeclaration(serverName string, t *mcp.Tool) (*genai.FunctionDeclaration, error) {
	fd := &genai.FunctionDeclaration{
		Name:        FunctionName(serverName, t.Name),
		Description: t.Description,
	}
	if t.InputSchema == nil {
		return fd, nil
	}

	// InputSchema is untyped on the client side
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema")
	}
	var js jsonschema.Schema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal input schema")
	}

	schema, err := convertJSONSchemaToGenai(&js)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert input schema")
	}
	// Gemini rejects an object schema without properties
	if schema != nil && schema.Type == genai.TypeObject && len(schema.Properties) == 0 {
		schema = nil
	}
	fd.Parameters = schema

	return fd, nil
}

func (p *Provider) Spec() *genai.Tool {
	if len(p.order) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, len(p.order))
	for i, name := range p.order {
		decls[i] = p.tools[name].funcDecl
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func (p *Provider) Prompt(ctx context.Context) string {
	if len(p.tools) == 0 {
		return ""
	}
	return "Functions whose names start with mcp_ are provided by external MCP servers. Use them when they fit the question better than web search."
}

// Execute calls the remote tool and returns its text content
func (p *Provider) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	target, ok := p.tools[fc.Name]
	if !ok {
		return nil, goerr.New("MCP tool not found", goerr.V("name", fc.Name))
	}

	result, err := p.client.CallTool(ctx, target.serverName, target.toolName, fc.Args)
	if err != nil {
		return nil, err
	}

	text, err := resultText(result)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, goerr.New("MCP tool returned error",
			goerr.V("server", target.serverName),
			goerr.V("tool", target.toolName),
			goerr.V("message", text))
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": text},
	}, nil
}

// Close closes the underlying server sessions
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// resultText joins text contents. Other content kinds are kept as JSON.
func resultText(result *mcp.CallToolResult) (string, error) {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal tool content")
		}
		parts = append(parts, string(raw))
	}

	if len(parts) == 0 && result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal structured content")
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, "\n"), nil
}
