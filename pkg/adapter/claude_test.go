package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/adapter"
)

func TestClaudeComplete(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/v1/messages")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Caesar was a Roman general."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	client := adapter.NewClaude("dummy",
		adapter.WithClaudeModel("claude-test"),
		adapter.WithClaudeRequestOptions(
			option.WithAPIKey("dummy"),
			option.WithBaseURL(srv.URL),
			option.WithMaxRetries(0),
		),
	)

	text, err := client.Complete(context.Background(), &adapter.CompletionRequest{
		System:    "answer only from documents",
		Prompt:    "Who was Julius Caesar?",
		MaxTokens: 2000,
	})
	gt.NoError(t, err)
	gt.Equal(t, text, "Caesar was a Roman general.")

	gt.V(t, received["model"]).Equal("claude-test")
	gt.V(t, received["max_tokens"]).Equal(float64(2000))
	gt.V(t, received["temperature"]).Equal(float64(0))
}

func TestClaudeCompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	client := adapter.NewClaude("dummy", adapter.WithClaudeRequestOptions(
		option.WithAPIKey("dummy"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	))

	_, err := client.Complete(context.Background(), &adapter.CompletionRequest{Prompt: "hi"})
	gt.Error(t, err)
}

func TestClaudeLive(t *testing.T) {
	apiKey := os.Getenv("TEST_ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_ANTHROPIC_API_KEY is not set")
	}

	text, err := adapter.NewClaude(apiKey).Complete(context.Background(), &adapter.CompletionRequest{
		Prompt:    "Reply with the single word: pong",
		MaxTokens: 16,
	})
	gt.NoError(t, err)
	gt.S(t, text).Contains("pong")
}
