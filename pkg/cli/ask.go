package cli

import (
	"context"

	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/usecase/session"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	a := newApp()

	return &cli.Command{
		Name:   "ask",
		Usage:  "Answer questions interactively, learning what the brain does not know",
		Flags:  a.flags(),
		Action: a.runAsk,
	}
}

func (a *app) runAsk(ctx context.Context, c *cli.Command) error {
	ctx, closer, err := a.cfg.setupLogger(ctx)
	if err != nil {
		return err
	}
	defer closer()

	prompter, err := adapter.NewReadlinePrompter(a.session.historyFile)
	if err != nil {
		return err
	}
	defer closeWithLog(ctx, "prompter", prompter)

	s, cleanup, err := a.build(ctx, c.Root().Writer, session.WithPrompter(prompter))
	if err != nil {
		return err
	}
	defer cleanup()

	return s.Run(ctx)
}

func onceCommand() *cli.Command {
	a := newApp()
	var question string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "question",
			Aliases:     []string{"q"},
			Usage:       "Question to answer",
			Required:    true,
			Destination: &question,
		},
	}
	flags = append(flags, a.flags()...)

	return &cli.Command{
		Name:  "once",
		Usage: "Answer one question and store what was learned",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, closer, err := a.cfg.setupLogger(ctx)
			if err != nil {
				return err
			}
			defer closer()

			s, cleanup, err := a.build(ctx, c.Root().Writer)
			if err != nil {
				return err
			}
			defer cleanup()

			return s.Once(ctx, question)
		},
	}
}
