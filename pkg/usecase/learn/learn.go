package learn

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/m-mizutani/hippo/pkg/utils/retry"
	"google.golang.org/genai"
)

//go:embed prompt/learn.md
var learnPromptRaw string

//go:embed prompt/system.md
var systemPromptRaw string

var (
	learnPromptTmpl  = template.Must(template.New("learn").Parse(learnPromptRaw))
	systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))
)

const (
	defaultMaxIterations = 16
	retryMessage         = "I made a mistake. Trying again..."
)

var (
	// ErrSearchExhausted is returned when every attempt of the agent failed
	ErrSearchExhausted = goerr.New("search agent gave up after retries")

	errEmptyAnswer    = goerr.New("agent returned no answer")
	errTooManyActions = goerr.New("agent did not finish within the iteration limit")
)

// ToolSet is the set of functions the agent may call. tool.Registry implements it.
type ToolSet interface {
	Specs() []*genai.Tool
	Prompts(ctx context.Context) string
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)
}

// Agent answers a question from outside knowledge by driving Gemini
// function calling over the tool set.
type Agent struct {
	gemini        adapter.Gemini
	tools         ToolSet
	retryConfig   *retry.Config
	maxIterations int
	output        io.Writer
}

type Option func(*Agent)

func WithRetryConfig(cfg *retry.Config) Option {
	return func(a *Agent) {
		a.retryConfig = cfg
	}
}

func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		a.maxIterations = n
	}
}

// WithOutput sets where retry notices are printed for the user
func WithOutput(w io.Writer) Option {
	return func(a *Agent) {
		a.output = w
	}
}

func New(gemini adapter.Gemini, tools ToolSet, opts ...Option) *Agent {
	a := &Agent{
		gemini:        gemini,
		tools:         tools,
		retryConfig:   retry.NewDefaultConfig(),
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Learn finds an answer to question. A failed attempt is retried with
// backoff. ErrSearchExhausted is returned when the bound is reached.
func (a *Agent) Learn(ctx context.Context, question string) (string, error) {
	var buf bytes.Buffer
	if err := learnPromptTmpl.Execute(&buf, map[string]any{"Question": question}); err != nil {
		return "", goerr.Wrap(err, "failed to render learn prompt")
	}
	instruction := buf.String()

	logger := logging.From(ctx)
	retrier := retry.NewRetrier(a.retryConfig, retry.WithNotify(func(ctx context.Context, attempt int, err error) {
		logger.Warn("agent made a mistake, trying again", "attempt", attempt, "error", err)
		if a.output != nil {
			fmt.Fprintln(a.output, retryMessage)
		}
	}))

	var answer string
	err := retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := a.run(ctx, instruction)
		if err != nil {
			return err
		}
		answer = resp
		return nil
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return "", goerr.Wrap(ErrSearchExhausted, err.Error(), goerr.V("question", question))
		}
		return "", err
	}

	return answer, nil
}

func (a *Agent) systemPrompt(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"ToolPrompts": a.tools.Prompts(ctx),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return buf.String(), nil
}

// run is one agent attempt: generate, execute requested functions, and feed
// the results back until the model answers in text.
func (a *Agent) run(ctx context.Context, instruction string) (string, error) {
	systemPrompt, err := a.systemPrompt(ctx)
	if err != nil {
		return "", err
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Temperature:       genai.Ptr[float32](0),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		Tools: a.tools.Specs(),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(instruction, genai.RoleUser),
	}

	logger := logging.From(ctx)
	for i := 0; i < a.maxIterations; i++ {
		resp, err := a.gemini.GenerateContent(ctx, contents, config)
		if err != nil {
			return "", goerr.Wrap(err, "failed to generate content", goerr.V("iteration", i))
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", goerr.New("empty response from Gemini", goerr.V("iteration", i))
		}

		candidate := resp.Candidates[0]
		contents = append(contents, candidate.Content)

		var responses []*genai.Part
		var texts []string
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				logger.Debug("agent calls tool", "name", part.FunctionCall.Name, "args", part.FunctionCall.Args)
				responses = append(responses, &genai.Part{
					FunctionResponse: a.execute(ctx, *part.FunctionCall),
				})
				continue
			}
			if part.Text != "" && !part.Thought {
				texts = append(texts, part.Text)
			}
		}

		if len(responses) == 0 {
			answer := strings.TrimSpace(strings.Join(texts, "\n"))
			if answer == "" {
				return "", goerr.Wrap(errEmptyAnswer, "no text in final response", goerr.V("iteration", i))
			}
			return answer, nil
		}

		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: responses,
		})
	}

	return "", goerr.Wrap(errTooManyActions, "agent stopped", goerr.V("max_iterations", a.maxIterations))
}

// execute runs one function call. A tool error goes back to the model so it
// can choose another action.
func (a *Agent) execute(ctx context.Context, fc genai.FunctionCall) *genai.FunctionResponse {
	resp, err := a.tools.Execute(ctx, fc)
	if err != nil {
		logging.From(ctx).Info("tool failed", "name", fc.Name, "error", err)
		return &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: map[string]any{"error": err.Error()},
		}
	}
	if resp.ID == "" {
		resp.ID = fc.ID
	}
	return resp
}
