package rank

import (
	"context"
	"runtime"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/philippgille/chromem-go"
)

// Ranker orders text chunks by similarity to a query using a throwaway
// in-memory vector collection per call.
type Ranker struct {
	embedder       adapter.Embedder
	dimensionality int
}

func New(embedder adapter.Embedder, dimensionality int) *Ranker {
	return &Ranker{embedder: embedder, dimensionality: dimensionality}
}

// TopK returns up to k chunks most similar to query, most similar first.
func (x *Ranker) TopK(ctx context.Context, query string, chunks []string, k int) ([]string, error) {
	if k > len(chunks) {
		k = len(chunks)
	}
	if k <= 0 {
		return nil, nil
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection("rank", nil, func(ctx context.Context, text string) ([]float32, error) {
		return x.embedder.Embedding(ctx, text, x.dimensionality)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create rank collection")
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{ID: strconv.Itoa(i), Content: c}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, goerr.Wrap(err, "failed to index chunks", goerr.V("chunks", len(chunks)))
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to rank chunks", goerr.V("k", k))
	}

	ranked := make([]string, len(results))
	for i, r := range results {
		ranked[i] = r.Content
	}
	return ranked, nil
}
