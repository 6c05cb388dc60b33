package adapter_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/adapter"
)

func TestLinePrompter(t *testing.T) {
	ctx := context.Background()
	out := &bytes.Buffer{}
	p := adapter.NewLinePrompter(strings.NewReader("Who was Julius Caesar?\r\n y \ny\n"), out)

	line, err := p.Prompt(ctx, "Ask a question > ")
	gt.NoError(t, err)
	gt.Equal(t, line, "Who was Julius Caesar?")

	// whitespace is kept so an exact answer can be required
	line, err = p.Prompt(ctx, "Is this answer accurate? (y/n) ")
	gt.NoError(t, err)
	gt.Equal(t, line, " y ")

	line, err = p.Prompt(ctx, "Is this answer accurate? (y/n) ")
	gt.NoError(t, err)
	gt.Equal(t, line, "y")

	_, err = p.Prompt(ctx, "> ")
	gt.True(t, errors.Is(err, io.EOF))

	gt.S(t, out.String()).Contains("Ask a question > ")
	gt.S(t, out.String()).Contains("(y/n)")
}

func TestLinePrompterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.NewLinePrompter(strings.NewReader("question\n"), nil).Prompt(ctx, "")
	gt.True(t, errors.Is(err, context.Canceled))
}
