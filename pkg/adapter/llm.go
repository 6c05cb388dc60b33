package adapter

import "context"

// CompletionRequest is a single-turn text generation request.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

// Completer generates text for a prompt. Both Gemini and Claude implement it.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// Embedder converts text into a vector. dimensionality <= 0 keeps the model default.
type Embedder interface {
	Embedding(ctx context.Context, text string, dimensionality int) ([]float32, error)
}
