package tool

import (
	"context"
	"net/http"

	"github.com/m-mizutani/hippo/pkg/adapter"
)

// ChunkRanker picks the chunks most similar to a query
type ChunkRanker interface {
	TopK(ctx context.Context, query string, chunks []string, k int) ([]string, error)
}

// Client contains shared resources that tools can use
type Client struct {
	LLM        adapter.Completer
	Ranker     ChunkRanker
	HTTPClient *http.Client
}
