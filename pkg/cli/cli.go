package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	cmd := &cli.Command{
		Name:           "hippo",
		Usage:          "Question answering that remembers what it learns",
		DefaultCommand: "ask",
		Commands: []*cli.Command{
			askCommand(),
			onceCommand(),
			countCommand(),
			resetCommand(),
			exportCommand(),
			importCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
