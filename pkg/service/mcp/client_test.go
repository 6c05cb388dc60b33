package mcp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/service/mcp"
	"github.com/m-mizutani/hippo/pkg/tool"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

func newEchoServer(t *testing.T) *httptest.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "echo-server",
		Version: "1.0.0",
	}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "echo",
		Description: "Echo back the message",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, params *struct {
		Message string `json:"message" jsonschema:"Message to echo"`
	}) (*mcpsdk.CallToolResult, any, error) {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: params.Message}},
		}, nil, nil
	})

	srv := httptest.NewServer(mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return server
	}, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestStdioTransport(t *testing.T) {
	ctx := context.Background()
	client := mcp.NewClient()

	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{
		Name:      "facts",
		Transport: "stdio",
		Command:   []string{"go", "run", "./testdata/stdio/main.go"},
	}))
	defer client.Close()

	gt.Equal(t, client.Servers(), []string{"facts"})

	tools, err := client.Tools("facts")
	gt.NoError(t, err)
	gt.A(t, tools).Length(1)
	gt.Equal(t, tools[0].Name, "lookup")

	result, err := client.CallTool(ctx, "facts", "lookup", map[string]any{"topic": "Caesar"})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.S(t, text.Text).Contains("Ides of March")

	_, err = client.Tools("unknown")
	gt.Error(t, err)
}

func TestHTTPStreamableTransport(t *testing.T) {
	ctx := context.Background()
	srv := newEchoServer(t)

	client := mcp.NewClient()
	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{
		Name:      "echo",
		Transport: "http",
		URL:       srv.URL,
	}))
	defer client.Close()

	result, err := client.CallTool(ctx, "echo", "echo", map[string]any{"message": "Hello from HTTP!"})
	gt.NoError(t, err)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.Equal(t, text.Text, "Hello from HTTP!")

	// a second connection under the same name is rejected
	gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "echo", Transport: "http", URL: srv.URL}))
}

func TestConnectInvalidConfig(t *testing.T) {
	ctx := context.Background()
	client := mcp.NewClient()

	testCases := []struct {
		name string
		cfg  mcp.ServerConfig
	}{
		{"no name", mcp.ServerConfig{Transport: "http", URL: "http://localhost"}},
		{"unknown transport", mcp.ServerConfig{Name: "x", Transport: "sse"}},
		{"stdio without command", mcp.ServerConfig{Name: "x", Transport: "stdio"}},
		{"http without url", mcp.ServerConfig{Name: "x", Transport: "http"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Error(t, client.Connect(ctx, tc.cfg))
		})
	}
	gt.A(t, client.Servers()).Length(0)
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	srv := newEchoServer(t)

	client := mcp.NewClient()
	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{Name: "echo", Transport: "http", URL: srv.URL}))
	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{
		Name:      "facts",
		Transport: "stdio",
		Command:   []string{"go", "run", "./testdata/stdio/main.go"},
	}))

	p := mcp.NewProvider(client)
	defer p.Close()

	enabled, err := p.Init(ctx, &tool.Client{})
	gt.NoError(t, err)
	gt.True(t, enabled)

	spec := p.Spec()
	gt.A(t, spec.FunctionDeclarations).Length(2)
	gt.Equal(t, spec.FunctionDeclarations[0].Name, "mcp_echo_echo")
	gt.Equal(t, spec.FunctionDeclarations[1].Name, "mcp_facts_lookup")
	gt.V(t, spec.FunctionDeclarations[1].Parameters).NotNil()
	gt.Map(t, spec.FunctionDeclarations[1].Parameters.Properties).HasKey("topic")

	// the provider plugs into the registry like a built-in tool
	r := tool.New(p)
	gt.NoError(t, r.Init(ctx, &tool.Client{}))

	resp, err := r.Execute(ctx, genai.FunctionCall{
		Name: "mcp_facts_lookup",
		Args: map[string]any{"topic": "alexander"},
	})
	gt.NoError(t, err)
	gt.V(t, resp.Response["result"]).Equal("Alexander the Great was tutored by Aristotle.")

	_, err = r.Execute(ctx, genai.FunctionCall{
		Name: "mcp_facts_lookup",
		Args: map[string]any{"topic": "napoleon"},
	})
	gt.Error(t, err)
}

func TestFunctionName(t *testing.T) {
	gt.Equal(t, mcp.FunctionName("my server", "get/fact"), "mcp_my_server_get_fact")
	gt.Equal(t, len(mcp.FunctionName("s", string(make([]byte, 100)))), 64)
}

func TestLoadAndConnect(t *testing.T) {
	ctx := context.Background()
	srv := newEchoServer(t)

	t.Run("empty path", func(t *testing.T) {
		p, err := mcp.LoadAndConnect(ctx, "")
		gt.NoError(t, err)
		gt.True(t, p == nil)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := mcp.LoadAndConnect(ctx, filepath.Join(t.TempDir(), "none.yaml"))
		gt.Error(t, err)
	})

	t.Run("skips broken servers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mcp.yaml")
		config := "servers:\n" +
			"  - name: echo\n    transport: http\n    url: " + srv.URL + "\n" +
			"  - name: broken\n    transport: http\n"
		gt.NoError(t, os.WriteFile(path, []byte(config), 0o600))

		p, err := mcp.LoadAndConnect(ctx, path)
		gt.NoError(t, err)
		gt.True(t, p != nil)
		defer p.Close()

		enabled, err := p.Init(ctx, &tool.Client{})
		gt.NoError(t, err)
		gt.True(t, enabled)
		gt.A(t, p.Spec().FunctionDeclarations).Length(1)
	})
}
