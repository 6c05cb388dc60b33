package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "he": {}, "his": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "what": {},
	"which": {}, "who": {}, "with": {},
}

// HashEmbedder is a deterministic bag-of-words embedder. Texts sharing words
// get similar vectors, so similarity ranking behaves plausibly without a model.
type HashEmbedder struct {
	Dimensions int

	mu    sync.Mutex
	calls int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dimensions: 256}
}

func (x *HashEmbedder) Embedding(ctx context.Context, text string, dimensionality int) ([]float32, error) {
	x.mu.Lock()
	x.calls++
	x.mu.Unlock()

	dims := x.Dimensions
	if dimensionality > 0 {
		dims = dimensionality
	}

	vec := make([]float32, dims)
	// last dimension is a constant bias so no vector is all zero
	vec[dims-1] = 0.01

	for _, word := range Words(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(dims-1)] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// Calls returns how many texts were embedded
func (x *HashEmbedder) Calls() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.calls
}

// Words lower-cases text and returns its words without stop words
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := stopWords[f]; ok {
			continue
		}
		words = append(words, f)
	}
	return words
}
