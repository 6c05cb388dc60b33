package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/model"
	"github.com/m-mizutani/hippo/pkg/repository"
)

// IDGenerator assigns the id of a memory about to be appended
type IDGenerator interface {
	NextID(ctx context.Context, col repository.Collection) (model.MemoryID, error)
}

// maxAttempts bounds the search for a free sequential id
const maxAttempts = 1024

// SequentialIDs uses the collection size as id. When that id is already taken
// (seeded documents start at "1") the next free integer is used instead.
// Concurrent writers to the same collection can still collide.
type SequentialIDs struct{}

func (SequentialIDs) NextID(ctx context.Context, col repository.Collection) (model.MemoryID, error) {
	n, err := col.Count(ctx)
	if err != nil {
		return "", err
	}

	for i := 0; i < maxAttempts; i++ {
		id := model.SequentialMemoryID(n + i)
		exists, err := col.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}

	return "", goerr.New("no free sequential memory id",
		goerr.V("collection", col.Name()),
		goerr.V("count", n),
	)
}

// UUIDs assigns random UUIDs and never consults the store
type UUIDs struct{}

func (UUIDs) NextID(ctx context.Context, col repository.Collection) (model.MemoryID, error) {
	return model.NewMemoryID(), nil
}

// NewIDGenerator resolves a strategy name: "sequential" (default) or "uuid"
func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strategy {
	case "", "sequential":
		return SequentialIDs{}, nil
	case "uuid":
		return UUIDs{}, nil
	default:
		return nil, goerr.New("unknown id strategy", goerr.V("strategy", strategy))
	}
}
