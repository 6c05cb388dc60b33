package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultClaudeModel = "claude-sonnet-4-5"

// ClaudeClient answers completion requests with the Anthropic Messages API
type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

type ClaudeOption func(*ClaudeClient)

func WithClaudeModel(model string) ClaudeOption {
	return func(c *ClaudeClient) {
		c.model = model
	}
}

// WithClaudeRequestOptions passes raw SDK options, e.g. a base URL for tests
func WithClaudeRequestOptions(opts ...option.RequestOption) ClaudeOption {
	return func(c *ClaudeClient) {
		client := anthropic.NewClient(opts...)
		c.client = &client
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &ClaudeClient{
		client: &client,
		model:  DefaultClaudeModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ClaudeClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call claude messages API", goerr.V("model", c.model))
	}

	var texts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}
