package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MemoryID identifies a memory record inside a collection. Sequential ids are
// string-encoded integers ("0", "1", ...).
type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// SequentialMemoryID encodes n as a MemoryID
func SequentialMemoryID(n int) MemoryID {
	return MemoryID(strconv.Itoa(n))
}

func (x MemoryID) String() string { return string(x) }

// Memory is a piece of text persisted with its embedding for similarity retrieval.
type Memory struct {
	ID         MemoryID
	Content    string
	Metadata   map[string]string
	Embedding  []float32
	Similarity float32
	CreatedAt  time.Time
}
