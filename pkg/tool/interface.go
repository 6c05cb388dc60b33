package tool

import (
	"context"

	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// Tool is a capability the search agent may call while looking for an answer
type Tool interface {
	// Flags registers settings of the tool on the ask and once commands. May be nil.
	Flags() []cli.Flag

	// Init runs after flags are parsed. A tool returning false is left out of
	// the agent, e.g. web search without an API key.
	Init(ctx context.Context, client *Client) (bool, error)

	// Spec declares the functions of the tool
	Spec() *genai.Tool

	// Prompt is appended to the agent instruction. Empty means nothing to add.
	Prompt(ctx context.Context) string

	// Execute answers one function call. A returned error is shown to the
	// model, which may try again with other arguments.
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)
}
