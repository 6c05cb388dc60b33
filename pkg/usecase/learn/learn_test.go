package learn_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/usecase/learn"
	"github.com/m-mizutani/hippo/pkg/utils/retry"
	"google.golang.org/genai"
)

type mockGemini struct {
	adapter.Gemini
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	calls        int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	return m.generateFunc(ctx, contents, config)
}

type mockTools struct {
	executeFunc func(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)
	executed    []string
}

func (m *mockTools) Specs() []*genai.Tool {
	return []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{Name: "web_search"}}}}
}

func (m *mockTools) Prompts(ctx context.Context) string {
	return "Use web_search for facts."
}

func (m *mockTools) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	m.executed = append(m.executed, fc.Name)
	return m.executeFunc(ctx, fc)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func callResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: name, Args: args}}},
			},
		}},
	}
}

func fastRetry(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries:    maxRetries,
		BackoffFactor: 1,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
	}
}

func TestLearnWithToolCall(t *testing.T) {
	ctx := context.Background()
	tools := &mockTools{
		executeFunc: func(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
			return &genai.FunctionResponse{
				Name:     fc.Name,
				Response: map[string]any{"result": "Answer: Pella"},
			}, nil
		},
	}

	gemini := &mockGemini{}
	gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gt.S(t, config.SystemInstruction.Parts[0].Text).Contains("Use web_search for facts.")
		gt.A(t, config.Tools).Length(1)

		if gemini.calls == 1 {
			gt.A(t, contents).Length(1)
			gt.Equal(t, contents[0].Parts[0].Text,
				"Find an answer to the following input: Where was Alexander the Great born?. Respond in a complete sentence that reiterates the input and provides an accurate, detailed answer.\n")
			return callResponse("web_search", map[string]any{"query": "Alexander the Great birthplace"}), nil
		}

		// instruction, model call, function response
		gt.A(t, contents).Length(3)
		gt.Equal(t, contents[2].Role, genai.RoleUser)
		gt.V(t, contents[2].Parts[0].FunctionResponse.Response["result"]).Equal("Answer: Pella")
		return textResponse("Alexander the Great was born in Pella, Macedon."), nil
	}

	agent := learn.New(gemini, tools, learn.WithRetryConfig(fastRetry(0)))
	answer, err := agent.Learn(ctx, "Where was Alexander the Great born?")
	gt.NoError(t, err)
	gt.Equal(t, answer, "Alexander the Great was born in Pella, Macedon.")
	gt.Equal(t, tools.executed, []string{"web_search"})
	gt.Equal(t, gemini.calls, 2)
}

func TestLearnToolErrorIsFedBack(t *testing.T) {
	tools := &mockTools{
		executeFunc: func(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
			return nil, goerr.New("rate limited")
		},
	}

	gemini := &mockGemini{}
	gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if gemini.calls == 1 {
			return callResponse("web_search", map[string]any{"query": "q"}), nil
		}
		resp := contents[len(contents)-1].Parts[0].FunctionResponse
		gt.V(t, resp.Response["error"]).Equal("rate limited")
		return textResponse("I could not search, but the answer is 42."), nil
	}

	answer, err := learn.New(gemini, tools, learn.WithRetryConfig(fastRetry(0))).Learn(context.Background(), "q")
	gt.NoError(t, err)
	gt.Equal(t, answer, "I could not search, but the answer is 42.")
}

func TestLearnRetriesThenSucceeds(t *testing.T) {
	var out bytes.Buffer
	gemini := &mockGemini{}
	gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if gemini.calls <= 2 {
			return nil, goerr.New("model overloaded")
		}
		return textResponse("Julius Caesar died in 44 BC."), nil
	}

	agent := learn.New(gemini, &mockTools{},
		learn.WithRetryConfig(fastRetry(5)),
		learn.WithOutput(&out),
	)
	answer, err := agent.Learn(context.Background(), "When did Caesar die?")
	gt.NoError(t, err)
	gt.Equal(t, answer, "Julius Caesar died in 44 BC.")
	gt.Equal(t, gemini.calls, 3)
	gt.Equal(t, strings.Count(out.String(), "I made a mistake. Trying again..."), 2)
}

func TestLearnExhausted(t *testing.T) {
	var out bytes.Buffer
	gemini := &mockGemini{}
	gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return textResponse("   "), nil
	}

	agent := learn.New(gemini, &mockTools{},
		learn.WithRetryConfig(fastRetry(2)),
		learn.WithOutput(&out),
	)
	_, err := agent.Learn(context.Background(), "q")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, learn.ErrSearchExhausted))
	gt.Equal(t, gemini.calls, 3)
	gt.Equal(t, strings.Count(out.String(), "I made a mistake. Trying again..."), 2)
}

func TestLearnIterationLimit(t *testing.T) {
	tools := &mockTools{
		executeFunc: func(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
			return &genai.FunctionResponse{Name: fc.Name, Response: map[string]any{"result": "nothing"}}, nil
		},
	}
	gemini := &mockGemini{}
	gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return callResponse("web_search", map[string]any{"query": "again"}), nil
	}

	agent := learn.New(gemini, tools,
		learn.WithRetryConfig(fastRetry(0)),
		learn.WithMaxIterations(3),
	)
	_, err := agent.Learn(context.Background(), "q")
	gt.True(t, errors.Is(err, learn.ErrSearchExhausted))
	gt.Equal(t, gemini.calls, 3)
	gt.A(t, tools.executed).Length(3)
}

func TestLearnCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gemini := &mockGemini{}
	gemini.generateFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		cancel()
		return nil, goerr.New("failed")
	}

	cfg := fastRetry(retry.Unbounded)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	_, err := learn.New(gemini, &mockTools{}, learn.WithRetryConfig(cfg)).Learn(ctx, "q")
	gt.True(t, errors.Is(err, context.Canceled))
	gt.False(t, errors.Is(err, learn.ErrSearchExhausted))
}
