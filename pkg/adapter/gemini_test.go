package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"google.golang.org/genai"
)

func newTestGemini(t *testing.T) *adapter.GeminiClient {
	ctx := context.Background()
	if apiKey := os.Getenv("TEST_GEMINI_API_KEY"); apiKey != "" {
		client, err := adapter.NewGeminiWithAPIKey(ctx, apiKey)
		gt.NoError(t, err)
		return client
	}

	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_API_KEY or TEST_GEMINI_PROJECT is not set")
	}
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)
	return client
}

func TestGenerateContent(t *testing.T) {
	client := newTestGemini(t)
	ctx := context.Background()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: "Hello, what is the capital of France?"},
			},
		},
	}

	resp, err := client.GenerateContent(ctx, contents, nil)
	gt.NoError(t, err)
	gt.S(t, adapter.ResponseText(resp)).Contains("Paris")
}

func TestComplete(t *testing.T) {
	client := newTestGemini(t)

	text, err := client.Complete(context.Background(), &adapter.CompletionRequest{
		System:    "Answer in one word.",
		Prompt:    "What is the capital of Japan?",
		MaxTokens: 64,
	})
	gt.NoError(t, err)
	gt.S(t, text).Contains("Tokyo")
}

func TestEmbedding(t *testing.T) {
	client := newTestGemini(t)

	vec, err := client.Embedding(context.Background(), "Julius Caesar was a Roman general", 768)
	gt.NoError(t, err)
	gt.A(t, vec).Length(768)
}

func TestResponseText(t *testing.T) {
	gt.Equal(t, adapter.ResponseText(nil), "")

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "thinking...", Thought: true},
						{Text: "first"},
						{FunctionCall: &genai.FunctionCall{Name: "calculator"}},
						{Text: "second"},
					},
				},
			},
		},
	}
	gt.Equal(t, adapter.ResponseText(resp), "first\nsecond")
}
