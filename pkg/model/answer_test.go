package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/model"
)

func TestNewAnswer(t *testing.T) {
	testCases := []struct {
		name       string
		raw        string
		sufficient bool
	}{
		{"plain answer", "Julius Caesar was a Roman general.", true},
		{"exact marker", "INSUFFICIENT_DATA", false},
		{"marker with whitespace", "  INSUFFICIENT_DATA\n", false},
		{"marker as substring", "I think the answer is INSUFFICIENT_DATA_FOR_NOW", false},
		{"marker quoted in sentence", "The docs mention INSUFFICIENT_DATA somewhere.", false},
		{"lower case is not marker", "insufficient_data", true},
		{"empty", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			answer := model.NewAnswer(tc.raw)
			gt.Equal(t, answer.Sufficient, tc.sufficient)
			gt.Equal(t, model.IsInsufficient(tc.raw), !tc.sufficient)
			if tc.sufficient {
				gt.Equal(t, answer.Text, tc.raw)
			} else {
				gt.Equal(t, answer.Text, "")
			}
		})
	}
}

func TestSequentialMemoryID(t *testing.T) {
	gt.Equal(t, model.SequentialMemoryID(0), model.MemoryID("0"))
	gt.Equal(t, model.SequentialMemoryID(12).String(), "12")
	gt.NotEqual(t, model.NewMemoryID(), model.NewMemoryID())
}
