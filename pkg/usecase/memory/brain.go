package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/model"
	"github.com/m-mizutani/hippo/pkg/repository"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
)

// MaxQuery is the upper bound of memories retrieved for one question
const MaxQuery = 5

var (
	ErrCollectionNameRequired = goerr.New("collection name is required")
	ErrEmptyMemory            = goerr.New("memory text is empty")
)

// Brain is the open handle of one memory collection. It is created once per
// process run and passed to every operation that reads or writes memories.
type Brain struct {
	col     repository.Collection
	ids     IDGenerator
	created bool

	appendMu sync.Mutex
}

type Option func(*Brain)

func WithIDGenerator(gen IDGenerator) Option {
	return func(b *Brain) {
		b.ids = gen
	}
}

// Ensure opens the named collection, creating and seeding it with the two
// bootstrap documents when it does not exist yet.
func Ensure(ctx context.Context, repo repository.Repository, name string, opts ...Option) (*Brain, error) {
	if name == "" {
		return nil, ErrCollectionNameRequired
	}

	b := &Brain{ids: SequentialIDs{}}
	for _, opt := range opts {
		opt(b)
	}

	names, err := repo.ListCollections(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list collections")
	}

	for _, n := range names {
		if n != name {
			continue
		}
		col, err := repo.GetCollection(ctx, name)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open collection", goerr.V("name", name))
		}
		b.col = col
		logging.From(ctx).Debug("brain found", "collection", name)
		return b, nil
	}

	col, err := repo.CreateCollection(ctx, name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create collection", goerr.V("name", name))
	}
	if err := col.Put(ctx, seedMemories()...); err != nil {
		return nil, goerr.Wrap(err, "failed to seed collection", goerr.V("name", name))
	}

	b.col = col
	b.created = true
	logging.From(ctx).Info("brain created", "collection", name)
	return b, nil
}

// Open wraps an already opened collection without seeding
func Open(col repository.Collection, opts ...Option) *Brain {
	b := &Brain{col: col, ids: SequentialIDs{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Brain) Name() string { return b.col.Name() }

// Created reports whether Ensure created the collection in this run
func (b *Brain) Created() bool { return b.created }

// Count returns the number of stored memories
func (b *Brain) Count(ctx context.Context) (int, error) {
	n, err := b.col.Count(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count memories", goerr.V("collection", b.col.Name()))
	}
	return n, nil
}

// Query returns at most min(k, MaxQuery, Count) memories most similar to question
func (b *Brain) Query(ctx context.Context, question string, k int) ([]*model.Memory, error) {
	if k > MaxQuery {
		k = MaxQuery
	}

	n, err := b.Count(ctx)
	if err != nil {
		return nil, err
	}
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	memories, err := b.col.Query(ctx, question, k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories",
			goerr.V("collection", b.col.Name()),
			goerr.V("k", k),
		)
	}
	if len(memories) > k {
		memories = memories[:k]
	}
	return memories, nil
}

// Append stores text as a new memory with empty metadata and returns its id
func (b *Brain) Append(ctx context.Context, text string) (model.MemoryID, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMemory
	}

	b.appendMu.Lock()
	defer b.appendMu.Unlock()

	id, err := b.ids.NextID(ctx, b.col)
	if err != nil {
		return "", goerr.Wrap(err, "failed to assign memory id", goerr.V("collection", b.col.Name()))
	}

	m := &model.Memory{
		ID:        id,
		Content:   text,
		Metadata:  map[string]string{},
		CreatedAt: time.Now().UTC(),
	}
	if err := b.col.Put(ctx, m); err != nil {
		return "", goerr.Wrap(err, "failed to append memory",
			goerr.V("collection", b.col.Name()),
			goerr.V("id", id),
		)
	}

	logging.From(ctx).Debug("memory appended", "collection", b.col.Name(), "id", id)
	return id, nil
}
