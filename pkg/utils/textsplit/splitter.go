package textsplit

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words, then characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text recursively on a list of separators until every chunk
// fits in ChunkSize characters. Neighboring chunks share up to ChunkOverlap
// characters. Length is measured in runes.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

type Option func(*Splitter)

func WithChunkSize(n int) Option {
	return func(s *Splitter) {
		s.chunkSize = n
	}
}

func WithChunkOverlap(n int) Option {
	return func(s *Splitter) {
		s.chunkOverlap = n
	}
}

func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		s.separators = separators
	}
}

func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chunkSize <= 0 {
		return nil, goerr.New("chunk size must be positive", goerr.V("chunk_size", s.chunkSize))
	}
	if s.chunkOverlap < 0 || s.chunkOverlap >= s.chunkSize {
		return nil, goerr.New("chunk overlap must be smaller than chunk size",
			goerr.V("chunk_size", s.chunkSize),
			goerr.V("chunk_overlap", s.chunkOverlap),
		)
	}
	if len(s.separators) == 0 {
		return nil, goerr.New("at least one separator is required")
	}

	return s, nil
}

// Split splits every text and returns all chunks in input order.
func (s *Splitter) Split(texts ...string) []string {
	var chunks []string
	for _, text := range texts {
		chunks = append(chunks, s.split(text, s.separators)...)
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitOn(text, separator) {
		if length(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}

	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, separator)...)
	}
	return chunks
}

// merge packs small pieces back together up to chunkSize, carrying the tail
// of the previous chunk (up to chunkOverlap) into the next one.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := length(separator)
	var docs, current []string
	total := 0

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, piece := range pieces {
		n := length(piece)
		if joinedLen(n) > s.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.chunkOverlap || (joinedLen(n) > s.chunkSize && total > 0) {
				total -= length(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}

	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitOn(text, separator string) []string {
	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	for _, p := range strings.Split(text, separator) {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
