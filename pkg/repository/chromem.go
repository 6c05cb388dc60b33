package repository

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/model"
	"github.com/philippgille/chromem-go"
)

// Chromem is an embedded vector store. With a path it persists collections on disk.
type Chromem struct {
	db         *chromem.DB
	embedFunc  chromem.EmbeddingFunc
	compress   bool
	encryptKey string
}

type ChromemOption func(*Chromem)

// WithCompress enables gzip compression of persisted files and exports
func WithCompress(compress bool) ChromemOption {
	return func(c *Chromem) {
		c.compress = compress
	}
}

// WithExportKey encrypts exported snapshots. The key must be 32 bytes.
func WithExportKey(key string) ChromemOption {
	return func(c *Chromem) {
		c.encryptKey = key
	}
}

// NewChromem opens the store at path, or an in-memory store when path is empty.
func NewChromem(path string, embedder adapter.Embedder, dimensionality int, opts ...ChromemOption) (*Chromem, error) {
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	c := &Chromem{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embedding(ctx, text, dimensionality)
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if path == "" {
		c.db = chromem.NewDB()
		return c, nil
	}

	db, err := chromem.NewPersistentDB(path, c.compress)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", path))
	}
	c.db = db
	return c, nil
}

func (c *Chromem) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	for name := range c.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Chromem) GetCollection(ctx context.Context, name string) (Collection, error) {
	col := c.db.GetCollection(name, c.embedFunc)
	if col == nil {
		return nil, goerr.Wrap(ErrCollectionNotFound, "no such chromem collection", goerr.V("name", name))
	}
	return &chromemCollection{col: col}, nil
}

func (c *Chromem) CreateCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, goerr.New("collection name is required")
	}

	col, err := c.db.CreateCollection(name, map[string]string{
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}, c.embedFunc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chromem collection", goerr.V("name", name))
	}
	return &chromemCollection{col: col}, nil
}

func (c *Chromem) DeleteCollection(ctx context.Context, name string) error {
	if err := c.db.DeleteCollection(name); err != nil {
		return goerr.Wrap(err, "failed to delete chromem collection", goerr.V("name", name))
	}
	return nil
}

func (c *Chromem) Export(ctx context.Context, w io.Writer, names ...string) error {
	if err := c.db.ExportToWriter(w, c.compress, c.encryptKey, names...); err != nil {
		return goerr.Wrap(err, "failed to export chromem collections", goerr.V("names", names))
	}
	return nil
}

func (c *Chromem) Import(ctx context.Context, r io.ReadSeeker, names ...string) error {
	if err := c.db.ImportFromReader(r, c.encryptKey, names...); err != nil {
		return goerr.Wrap(err, "failed to import chromem collections", goerr.V("names", names))
	}
	return nil
}

func (c *Chromem) Close() error { return nil }

type chromemCollection struct {
	col *chromem.Collection
}

func (x *chromemCollection) Name() string { return x.col.Name }

func (x *chromemCollection) Count(ctx context.Context) (int, error) {
	return x.col.Count(), nil
}

func (x *chromemCollection) Exists(ctx context.Context, id model.MemoryID) (bool, error) {
	if id == "" {
		return false, goerr.New("memory id is empty")
	}
	// GetByID fails only for a missing document once the id is non-empty
	if _, err := x.col.GetByID(ctx, id.String()); err != nil {
		return false, nil
	}
	return true, nil
}

func (x *chromemCollection) Query(ctx context.Context, text string, limit int) ([]*model.Memory, error) {
	if n := x.col.Count(); limit > n {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := x.col.Query(ctx, text, limit, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query chromem collection",
			goerr.V("collection", x.col.Name),
			goerr.V("limit", limit),
		)
	}

	memories := make([]*model.Memory, 0, len(results))
	for _, r := range results {
		memories = append(memories, &model.Memory{
			ID:         model.MemoryID(r.ID),
			Content:    r.Content,
			Metadata:   r.Metadata,
			Embedding:  r.Embedding,
			Similarity: r.Similarity,
		})
	}
	return memories, nil
}

func (x *chromemCollection) Put(ctx context.Context, memories ...*model.Memory) error {
	for _, m := range memories {
		metadata := m.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}

		doc := chromem.Document{
			ID:        m.ID.String(),
			Content:   m.Content,
			Metadata:  metadata,
			Embedding: m.Embedding,
		}
		if err := x.col.AddDocument(ctx, doc); err != nil {
			return goerr.Wrap(err, "failed to add chromem document",
				goerr.V("collection", x.col.Name),
				goerr.V("id", m.ID),
			)
		}
	}
	return nil
}
