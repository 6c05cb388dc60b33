package adapter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
)

// Prompter reads one line of operator input. The line is returned as typed,
// without the line terminator. It returns io.EOF when input ends.
type Prompter interface {
	Prompt(ctx context.Context, label string) (string, error)
}

// ReadlinePrompter is a line editor with history for interactive terminals
type ReadlinePrompter struct {
	rl *readline.Instance
}

// NewReadlinePrompter creates a prompter on the process terminal. historyFile may be empty.
func NewReadlinePrompter(historyFile string) (*ReadlinePrompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize readline")
	}
	return &ReadlinePrompter{rl: rl}, nil
}

// Prompt blocks until a line is entered. Ctrl-C and Ctrl-D are reported as io.EOF.
func (p *ReadlinePrompter) Prompt(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.rl.SetPrompt(label)
	line, err := p.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", goerr.Wrap(err, "failed to read line")
	}
	return strings.TrimSuffix(line, "\r"), nil
}

func (p *ReadlinePrompter) Close() error {
	return p.rl.Close()
}

// LinePrompter reads lines from any reader, used for piped input
type LinePrompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

func NewLinePrompter(r io.Reader, w io.Writer) *LinePrompter {
	return &LinePrompter{scanner: bufio.NewScanner(r), w: w}
}

func (p *LinePrompter) Prompt(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if p.w != nil && label != "" {
		fmt.Fprint(p.w, label)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", goerr.Wrap(err, "failed to read line")
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(p.scanner.Text(), "\r"), nil
}
