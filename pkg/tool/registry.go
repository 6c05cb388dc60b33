package tool

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

var errToolNotFound = goerr.New("tool not found")

// Registry manages available tools for the LLM
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
	enabled  []Tool
}

// New creates a new tool registry with the given tools. Every tool is enabled
// until Init decides otherwise.
func New(tools ...Tool) *Registry {
	r := &Registry{
		allTools: tools,
	}
	r.setEnabled(tools)
	return r
}

func (r *Registry) setEnabled(tools []Tool) {
	r.enabled = tools
	r.tools = make(map[string]Tool)
	for _, t := range tools {
		spec := t.Spec()
		if spec == nil {
			continue
		}
		for _, fd := range spec.FunctionDeclarations {
			r.tools[fd.Name] = t
		}
	}
}

// Init initializes every tool and keeps only the ones that report enabled
func (r *Registry) Init(ctx context.Context, client *Client) error {
	var enabled []Tool
	for _, t := range r.allTools {
		ok, err := t.Init(ctx, client)
		if err != nil {
			return goerr.Wrap(err, "failed to initialize tool")
		}
		if ok {
			enabled = append(enabled, t)
		}
	}
	r.setEnabled(enabled)

	logging.From(ctx).Debug("tools initialized", "enabled", r.Names())
	return nil
}

// Names returns function names of enabled tools in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns all tool specifications for Gemini function calling
func (r *Registry) Specs() []*genai.Tool {
	specs := make([]*genai.Tool, 0, len(r.enabled))
	for _, t := range r.enabled {
		if spec := t.Spec(); spec != nil && len(spec.FunctionDeclarations) > 0 {
			specs = append(specs, spec)
		}
	}
	return specs
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.enabled {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Flags returns all tool flags combined
func (r *Registry) Flags() []cli.Flag {
	var flags []cli.Flag
	for _, t := range r.allTools {
		if toolFlags := t.Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	tool, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(errToolNotFound, "tool not found", goerr.V("name", fc.Name))
	}

	return tool.Execute(ctx, fc)
}
