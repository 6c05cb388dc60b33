package repository

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/model"
)

// ErrCollectionNotFound is returned by GetCollection when no collection has the name
var ErrCollectionNotFound = goerr.New("collection not found")

// Repository manages named memory collections of a vector store
type Repository interface {
	// ListCollections returns names of existing collections
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollection opens an existing collection. It returns ErrCollectionNotFound if missing.
	GetCollection(ctx context.Context, name string) (Collection, error)

	// CreateCollection creates an empty collection
	CreateCollection(ctx context.Context, name string) (Collection, error)

	// DeleteCollection removes a collection with all memories
	DeleteCollection(ctx context.Context, name string) error

	Close() error
}

// Collection is a named set of memories with embeddings
type Collection interface {
	Name() string

	// Count returns the number of memories
	Count(ctx context.Context) (int, error)

	// Exists reports whether a memory with the id is stored
	Exists(ctx context.Context, id model.MemoryID) (bool, error)

	// Query returns up to limit memories ordered by similarity to text, highest first
	Query(ctx context.Context, text string, limit int) ([]*model.Memory, error)

	// Put stores memories. Embeddings are computed by the store when empty.
	Put(ctx context.Context, memories ...*model.Memory) error
}

// Snapshotter is implemented by stores that can dump and restore collections
type Snapshotter interface {
	Export(ctx context.Context, w io.Writer, names ...string) error
	Import(ctx context.Context, r io.ReadSeeker, names ...string) error
}
