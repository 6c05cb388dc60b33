package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/repository"
	"github.com/m-mizutani/hippo/pkg/usecase/memory"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// openRepository sets up the logger and opens the store of a maintenance command
func (cfg *config) openRepository(ctx context.Context, opts ...repository.ChromemOption) (context.Context, repository.Repository, func(), error) {
	ctx, closer, err := cfg.setupLogger(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}
	if err := cfg.validate(); err != nil {
		closer()
		return ctx, nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		closer()
		return ctx, nil, nil, err
	}
	repo, err := cfg.newRepository(ctx, gemini, opts...)
	if err != nil {
		closer()
		return ctx, nil, nil, err
	}

	return ctx, repo, func() {
		closeWithLog(ctx, "repository", repo)
		closer()
	}, nil
}

func maintenanceFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, logFlags(cfg)...)
	flags = append(flags, brainFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)
	return flags
}

func countCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "count",
		Usage: "Show the number of memories in the brain",
		Flags: maintenanceFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, repo, cleanup, err := cfg.openRepository(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			w := c.Root().Writer
			col, err := repo.GetCollection(ctx, cfg.collection)
			if errors.Is(err, repository.ErrCollectionNotFound) {
				fmt.Fprintln(w, "Brain not found.")
				fmt.Fprintln(w, "Memory count: 0")
				return nil
			}
			if err != nil {
				return err
			}

			n, err := memory.Open(col).Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Memory count: %d\n", n)
			return nil
		},
	}
}

func resetCommand() *cli.Command {
	var (
		cfg config
		yes bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "Delete without confirmation",
			Destination: &yes,
		},
	}
	flags = append(flags, maintenanceFlags(&cfg)...)

	return &cli.Command{
		Name:  "reset",
		Usage: "Delete the brain with all of its memories",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, repo, cleanup, err := cfg.openRepository(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			w := c.Root().Writer
			if !yes {
				ok, err := confirm(ctx, adapter.NewLinePrompter(stdin(c), w),
					fmt.Sprintf("Delete brain %q? (y/n) ", cfg.collection))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(w, "Canceled.")
					return nil
				}
			}

			return resetBrain(ctx, repo, cfg.collection, w)
		},
	}
}

func confirm(ctx context.Context, p adapter.Prompter, label string) (bool, error) {
	input, err := p.Prompt(ctx, label)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(input) == "y", nil
}

func resetBrain(ctx context.Context, repo repository.Repository, name string, w io.Writer) error {
	names, err := repo.ListCollections(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list collections")
	}

	for _, n := range names {
		if n != name {
			continue
		}
		if err := repo.DeleteCollection(ctx, name); err != nil {
			return err
		}
		logging.From(ctx).Info("brain deleted", "collection", name)
		fmt.Fprintf(w, "Brain %q deleted.\n", name)
		return nil
	}

	fmt.Fprintf(w, "Brain %q not found.\n", name)
	return nil
}

// stdin returns the command input, falling back to the process stdin
func stdin(c *cli.Command) io.Reader {
	if r := c.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}
