package recall

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/model"
	"github.com/m-mizutani/hippo/pkg/usecase/memory"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/m-mizutani/hippo/pkg/utils/textsplit"
)

//go:embed prompt/instruction.md
var instructionPromptRaw string

//go:embed prompt/recall.md
var recallPromptRaw string

var (
	instructionPromptTmpl = template.Must(template.New("instruction").Parse(instructionPromptRaw))
	recallPromptTmpl      = template.Must(template.New("recall").Parse(recallPromptRaw))
)

const (
	defaultChunkK    = 4
	defaultMaxTokens = 2000
)

// ChunkRanker picks the chunks most similar to a query
type ChunkRanker interface {
	TopK(ctx context.Context, query string, chunks []string, k int) ([]string, error)
}

// Answerer answers a question strictly from memories of a brain
type Answerer struct {
	llm       adapter.Completer
	ranker    ChunkRanker
	splitter  *textsplit.Splitter
	chunkK    int
	maxTokens int32
}

type Option func(*Answerer)

// WithChunkK sets how many chunks are put into the prompt
func WithChunkK(k int) Option {
	return func(x *Answerer) {
		x.chunkK = k
	}
}

func WithMaxTokens(n int32) Option {
	return func(x *Answerer) {
		x.maxTokens = n
	}
}

func WithSplitter(s *textsplit.Splitter) Option {
	return func(x *Answerer) {
		x.splitter = s
	}
}

func New(llm adapter.Completer, ranker ChunkRanker, opts ...Option) (*Answerer, error) {
	splitter, err := textsplit.New()
	if err != nil {
		return nil, err
	}

	x := &Answerer{
		llm:       llm,
		ranker:    ranker,
		splitter:  splitter,
		chunkK:    defaultChunkK,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Answer retrieves up to five memories, re-chunks them, and asks the model to
// answer from those chunks only. A brain without memories is insufficient
// without calling the model. Errors are returned as is, there is no retry.
func (x *Answerer) Answer(ctx context.Context, brain *memory.Brain, question string) (*model.Answer, error) {
	logger := logging.From(ctx)

	memories, err := brain.Query(ctx, question, memory.MaxQuery)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		logger.Debug("no memories to recall from", "collection", brain.Name())
		return &model.Answer{Sufficient: false}, nil
	}

	texts := make([]string, len(memories))
	for i, m := range memories {
		texts[i] = m.Content
	}
	chunks := x.splitter.Split(texts...)

	instruction, err := renderInstruction(question)
	if err != nil {
		return nil, err
	}

	selected, err := x.ranker.TopK(ctx, instruction, chunks, x.chunkK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to select chunks")
	}
	logger.Debug("recalled chunks",
		"memories", len(memories),
		"chunks", len(chunks),
		"selected", len(selected),
	)

	var buf bytes.Buffer
	if err := recallPromptTmpl.Execute(&buf, map[string]any{
		"Chunks":      selected,
		"Instruction": instruction,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to render recall prompt")
	}

	raw, err := x.llm.Complete(ctx, &adapter.CompletionRequest{
		Prompt:      buf.String(),
		Temperature: 0,
		MaxTokens:   x.maxTokens,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to answer from memory")
	}

	logger.Debug("memory answer", "raw", raw)
	return model.NewAnswer(raw), nil
}

func renderInstruction(question string) (string, error) {
	var buf bytes.Buffer
	if err := instructionPromptTmpl.Execute(&buf, map[string]any{
		"Question": question,
		"Marker":   model.InsufficientData,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render instruction")
	}
	return strings.TrimSpace(buf.String()), nil
}
