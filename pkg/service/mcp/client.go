package mcp

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

const (
	clientName    = "hippo"
	clientVersion = "0.1.0"
)

var errServerNotFound = goerr.New("MCP server not found")

// Client manages connections to multiple MCP servers
type Client struct {
	servers map[string]*server
}

type server struct {
	name    string
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// ServerConfig represents configuration for a single MCP server
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command"`
	URL       string            `yaml:"url"`
	Env       map[string]string `yaml:"env"`
}

// Config represents the MCP configuration file structure
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

func NewClient() *Client {
	return &Client{
		servers: make(map[string]*server),
	}
}

// Connect connects to an MCP server and caches its tool list
func (c *Client) Connect(ctx context.Context, cfg ServerConfig) error {
	if cfg.Name == "" {
		return goerr.New("server name is required")
	}
	if _, exists := c.servers[cfg.Name]; exists {
		return goerr.New("server already connected", goerr.V("name", cfg.Name))
	}

	var transport mcp.Transport
	var err error
	switch cfg.Transport {
	case "stdio":
		transport, err = newStdioTransport(cfg)
	case "http":
		transport, err = newHTTPTransport(cfg)
	default:
		return goerr.New("unsupported transport",
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to create transport", goerr.V("server", cfg.Name))
	}

	return c.connect(ctx, cfg.Name, transport)
}

func (c *Client) connect(ctx context.Context, name string, transport mcp.Transport) error {
	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to MCP server", goerr.V("server", name))
	}

	toolsResult, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return goerr.Wrap(err, "failed to list tools", goerr.V("server", name))
	}

	c.servers[name] = &server{
		name:    name,
		session: session,
		tools:   toolsResult.Tools,
	}
	logging.From(ctx).Debug("MCP server connected", "server", name, "tools", len(toolsResult.Tools))
	return nil
}

func newStdioTransport(cfg ServerConfig) (mcp.Transport, error) {
	if len(cfg.Command) == 0 {
		return nil, goerr.New("command is required for stdio transport")
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	return &mcp.CommandTransport{Command: cmd}, nil
}

func newHTTPTransport(cfg ServerConfig) (mcp.Transport, error) {
	if cfg.URL == "" {
		return nil, goerr.New("url is required for http transport")
	}
	return &mcp.StreamableClientTransport{Endpoint: cfg.URL}, nil
}

// Tools returns all tools of a connected server
func (c *Client) Tools(serverName string) ([]*mcp.Tool, error) {
	srv, exists := c.servers[serverName]
	if !exists {
		return nil, goerr.Wrap(errServerNotFound, "no such server", goerr.V("name", serverName))
	}
	return srv.tools, nil
}

// Servers returns names of all connected servers in sorted order
func (c *Client) Servers() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool calls a tool on a specific server
func (c *Client) CallTool(ctx context.Context, serverName string, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	srv, exists := c.servers[serverName]
	if !exists {
		return nil, goerr.Wrap(errServerNotFound, "no such server", goerr.V("name", serverName))
	}

	result, err := srv.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool",
			goerr.V("server", serverName),
			goerr.V("tool", toolName))
	}

	return result, nil
}

// Close closes every session and keeps going past failures
func (c *Client) Close() error {
	var first error
	for _, name := range c.Servers() {
		if err := c.servers[name].session.Close(); err != nil && first == nil {
			first = goerr.Wrap(err, "failed to close session", goerr.V("server", name))
		}
	}
	c.servers = make(map[string]*server)
	return first
}

// LoadConfig reads the YAML server list at path
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve config path", goerr.V("path", path))
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read MCP config file", goerr.V("path", absPath))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse MCP config file", goerr.V("path", absPath))
	}
	return &cfg, nil
}

// LoadAndConnect connects to every server in the config file. Servers that
// fail to connect are logged and skipped. A nil provider means no server is
// available.
func LoadAndConnect(ctx context.Context, configPath string) (*Provider, error) {
	if configPath == "" {
		return nil, nil
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.From(ctx)
	if len(cfg.Servers) == 0 {
		logger.Info("no MCP servers configured", "path", configPath)
		return nil, nil
	}

	client := NewClient()
	var failed []string
	for _, serverCfg := range cfg.Servers {
		if err := client.Connect(ctx, serverCfg); err != nil {
			logger.Warn("failed to connect to MCP server", "server", serverCfg.Name, "error", err)
			failed = append(failed, serverCfg.Name)
			continue
		}
		logger.Info("connected to MCP server", "server", serverCfg.Name)
	}

	if len(client.Servers()) == 0 {
		logger.Warn("no MCP servers connected", "failed", failed)
		return nil, nil
	}

	return NewProvider(client), nil
}
