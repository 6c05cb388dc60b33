package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/policy"
	"github.com/m-mizutani/hippo/pkg/service/mcp"
	"github.com/m-mizutani/hippo/pkg/service/rank"
	"github.com/m-mizutani/hippo/pkg/tool"
	"github.com/m-mizutani/hippo/pkg/tool/browser"
	"github.com/m-mizutani/hippo/pkg/tool/calculator"
	"github.com/m-mizutani/hippo/pkg/tool/search"
	"github.com/m-mizutani/hippo/pkg/usecase/learn"
	"github.com/m-mizutani/hippo/pkg/usecase/recall"
	"github.com/m-mizutani/hippo/pkg/usecase/session"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// sessionConfig holds flags changing how answers are handled
type sessionConfig struct {
	review          bool
	admissionPolicy string
	journalProject  string
	journalDataset  string
	journalTable    string
	spinner         bool
	historyFile     string
}

func sessionFlags(cfg *sessionConfig) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "review-memories",
			Usage:       "Ask for approval before a learned answer is stored. The env value is a boolean (true, false, 1, 0); anything else fails at startup",
			Sources:     cli.EnvVars("HIPPO_REVIEW_MEMORIES", "REVIEW_MEMORIES"),
			Destination: &cfg.review,
		},
		&cli.StringFlag{
			Name:        "admission-policy",
			Usage:       "Directory of Rego files (package memory) gating stored memories",
			Sources:     cli.EnvVars("HIPPO_ADMISSION_POLICY"),
			Destination: &cfg.admissionPolicy,
		},
		&cli.StringFlag{
			Name:        "journal-project",
			Usage:       "BigQuery project of the session journal",
			Sources:     cli.EnvVars("HIPPO_JOURNAL_PROJECT"),
			Destination: &cfg.journalProject,
		},
		&cli.StringFlag{
			Name:        "journal-dataset",
			Usage:       "BigQuery dataset of the session journal",
			Sources:     cli.EnvVars("HIPPO_JOURNAL_DATASET"),
			Destination: &cfg.journalDataset,
		},
		&cli.StringFlag{
			Name:        "journal-table",
			Usage:       "BigQuery table of the session journal",
			Sources:     cli.EnvVars("HIPPO_JOURNAL_TABLE"),
			Destination: &cfg.journalTable,
		},
		&cli.BoolFlag{
			Name:        "spinner",
			Usage:       "Show a spinner while waiting for models",
			Value:       true,
			Sources:     cli.EnvVars("HIPPO_SPINNER"),
			Destination: &cfg.spinner,
		},
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "File keeping the question history of interactive sessions",
			Sources:     cli.EnvVars("HIPPO_HISTORY_FILE"),
			Destination: &cfg.historyFile,
		},
	}
}

func (cfg *sessionConfig) newJournal(ctx context.Context) (adapter.Journal, error) {
	if cfg.journalProject == "" && cfg.journalDataset == "" && cfg.journalTable == "" {
		return adapter.NopJournal{}, nil
	}
	return adapter.NewBigQueryJournal(ctx, cfg.journalProject, cfg.journalDataset, cfg.journalTable)
}

// app holds flag destinations of commands running a session
type app struct {
	cfg      config
	search   searchConfig
	session  sessionConfig
	builtins []tool.Tool
}

func newApp() *app {
	return &app{
		builtins: []tool.Tool{
			browser.New(),
			calculator.New(),
			search.New(),
		},
	}
}

func (a *app) flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, logFlags(&a.cfg)...)
	flags = append(flags, brainFlags(&a.cfg)...)
	flags = append(flags, llmFlags(&a.cfg)...)
	flags = append(flags, searchFlags(&a.search)...)
	flags = append(flags, sessionFlags(&a.session)...)
	flags = append(flags, tool.New(a.builtins...).Flags()...)
	return flags
}

// build wires every component of a session. The returned cleanup releases
// what was opened, also on error.
func (a *app) build(ctx context.Context, w io.Writer, opts ...session.Option) (*session.Session, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	s, err := a.assemble(ctx, w, &closers, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

func (a *app) assemble(ctx context.Context, w io.Writer, closers *[]func(), opts ...session.Option) (*session.Session, error) {
	if err := a.cfg.validate(); err != nil {
		return nil, err
	}
	retryConfig, err := a.search.retryConfig()
	if err != nil {
		return nil, err
	}

	gemini, err := a.cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	repo, err := a.cfg.newRepository(ctx, gemini)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { closeWithLog(ctx, "repository", repo) })

	brain, err := a.cfg.openBrain(ctx, repo)
	if err != nil {
		return nil, err
	}

	answerModel, err := a.cfg.newAnswerModel(gemini)
	if err != nil {
		return nil, err
	}
	ranker := rank.New(gemini, int(a.cfg.embeddingDimensions))
	recaller, err := recall.New(answerModel, ranker)
	if err != nil {
		return nil, err
	}

	tools := append([]tool.Tool{}, a.builtins...)
	provider, err := mcp.LoadAndConnect(ctx, a.search.mcpConfig)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		*closers = append(*closers, func() { closeWithLog(ctx, "mcp", provider) })
		tools = append(tools, provider)
	}

	registry := tool.New(tools...)
	if err := registry.Init(ctx, &tool.Client{
		LLM:        gemini,
		Ranker:     ranker,
		HTTPClient: a.search.httpClient(),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize tools")
	}
	logging.From(ctx).Info("search agent tools", "names", registry.Names())

	learner := learn.New(gemini, registry,
		learn.WithRetryConfig(retryConfig),
		learn.WithOutput(w),
	)

	admission, err := policy.Load(ctx, a.session.admissionPolicy)
	if err != nil {
		return nil, err
	}
	journal, err := a.session.newJournal(ctx)
	if err != nil {
		return nil, err
	}

	sessionOpts := []session.Option{
		session.WithReview(a.session.review),
		session.WithJournal(journal),
		session.WithSpinner(a.session.spinner),
	}
	if admission.Enabled() {
		sessionOpts = append(sessionOpts, session.WithAdmission(admission))
	}
	sessionOpts = append(sessionOpts, opts...)

	return session.New(brain, recaller, learner, w, sessionOpts...), nil
}
