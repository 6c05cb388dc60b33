package model

import "strings"

// InsufficientData is the marker the answer model emits when the given
// documents can not answer the question.
const InsufficientData = "INSUFFICIENT_DATA"

// Answer is a result of the retrieval step. Text is empty when Sufficient is false.
type Answer struct {
	Sufficient bool
	Text       string
}

// IsInsufficient reports whether raw model output carries the marker. The match
// is substring based, so an answer quoting the marker is classified as
// insufficient too.
func IsInsufficient(raw string) bool {
	return strings.Contains(raw, InsufficientData)
}

// NewAnswer classifies raw model output.
func NewAnswer(raw string) *Answer {
	if IsInsufficient(raw) {
		return &Answer{Sufficient: false}
	}
	return &Answer{Sufficient: true, Text: raw}
}
