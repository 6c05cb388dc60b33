package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/repository"
	"github.com/m-mizutani/hippo/pkg/usecase/memory"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/m-mizutani/hippo/pkg/utils/retry"
	"github.com/urfave/cli/v3"
)

var errCollectionRequired = goerr.New("collection name is required (--collection or HIPPO_COLLECTION)")

const (
	storeChromem   = "chromem"
	storeFirestore = "firestore"

	providerGemini = "gemini"
	providerClaude = "claude"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logOutput string

	// Brain
	collection        string
	store             string
	dbPath            string
	compress          bool
	firestoreProject  string
	firestoreDatabase string
	idStrategy        string

	// Adapters
	geminiAPIKey        string
	geminiProject       string
	geminiLocation      string
	geminiModel         string
	embeddingModel      string
	embeddingDimensions int64
	answerProvider      string
	anthropicAPIKey     string
	claudeModel         string
}

// logFlags returns flags for logger configuration
func logFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("HIPPO_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output: stderr, stdout or a file path",
			Value:       "stderr",
			Sources:     cli.EnvVars("HIPPO_LOG_OUTPUT"),
			Destination: &cfg.logOutput,
		},
	}
}

// brainFlags returns flags selecting the memory store and collection
func brainFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "collection",
			Aliases:     []string{"c"},
			Usage:       "Name of the memory collection (brain)",
			Sources:     cli.EnvVars("HIPPO_COLLECTION", "COLLECTION_NAME"),
			Destination: &cfg.collection,
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Memory store backend (chromem, firestore)",
			Value:       storeChromem,
			Sources:     cli.EnvVars("HIPPO_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "Directory of the chromem database (empty for in-memory)",
			Value:       ".hippo",
			Sources:     cli.EnvVars("HIPPO_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.BoolFlag{
			Name:        "db-compress",
			Usage:       "Compress chromem files on disk",
			Sources:     cli.EnvVars("HIPPO_DB_COMPRESS"),
			Destination: &cfg.compress,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of Firestore",
			Sources:     cli.EnvVars("HIPPO_FIRESTORE_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("HIPPO_FIRESTORE_DATABASE", "FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "id-strategy",
			Usage:       "Memory ID assignment (sequential, uuid)",
			Value:       "sequential",
			Sources:     cli.EnvVars("HIPPO_ID_STRATEGY"),
			Destination: &cfg.idStrategy,
		},
	}
}

// llmFlags returns flags for LLM-related configuration
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini Developer API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for generation",
			Value:       adapter.DefaultGenerativeModel,
			Sources:     cli.EnvVars("HIPPO_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini model for embeddings",
			Value:       adapter.DefaultEmbeddingModel,
			Sources:     cli.EnvVars("HIPPO_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding vector size",
			Value:       768,
			Sources:     cli.EnvVars("HIPPO_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDimensions,
		},
		&cli.StringFlag{
			Name:        "answer-provider",
			Usage:       "Model provider answering from memories (gemini, claude)",
			Value:       providerGemini,
			Sources:     cli.EnvVars("HIPPO_ANSWER_PROVIDER"),
			Destination: &cfg.answerProvider,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model answering from memories",
			Value:       adapter.DefaultClaudeModel,
			Sources:     cli.EnvVars("HIPPO_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
	}
}

// setupLogger builds the logger from flags and puts it into ctx
func (cfg *config) setupLogger(ctx context.Context) (context.Context, func(), error) {
	if _, err := logging.ParseLevel(cfg.logLevel); err != nil {
		return ctx, nil, err
	}
	w, closer, err := logging.OpenOutput(cfg.logOutput)
	if err != nil {
		return ctx, nil, err
	}
	logger := logging.New(cfg.logLevel, w)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), closer, nil
}

// validate checks what every brain command needs before touching a store
func (cfg *config) validate() error {
	if cfg.collection == "" {
		return errCollectionRequired
	}
	switch cfg.store {
	case storeChromem, storeFirestore:
	default:
		return goerr.New("unsupported store", goerr.V("store", cfg.store))
	}
	if _, err := memory.NewIDGenerator(cfg.idStrategy); err != nil {
		return err
	}
	return nil
}

// newGemini creates a Gemini client, preferring an API key over Vertex AI
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	opts := []adapter.GeminiOption{
		adapter.WithGenerativeModel(cfg.geminiModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	}

	if cfg.geminiAPIKey != "" {
		return adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)
	}
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-api-key or gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newAnswerModel returns the model running the constrained memory prompt
func (cfg *config) newAnswerModel(gemini *adapter.GeminiClient) (adapter.Completer, error) {
	switch cfg.answerProvider {
	case "", providerGemini:
		return gemini, nil
	case providerClaude:
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required for claude answer provider")
		}
		return adapter.NewClaude(cfg.anthropicAPIKey, adapter.WithClaudeModel(cfg.claudeModel)), nil
	}
	return nil, goerr.New("unsupported answer provider", goerr.V("provider", cfg.answerProvider))
}

// newRepository opens the configured memory store
func (cfg *config) newRepository(ctx context.Context, embedder adapter.Embedder, opts ...repository.ChromemOption) (repository.Repository, error) {
	dims := int(cfg.embeddingDimensions)

	switch cfg.store {
	case storeChromem:
		repo, err := repository.NewChromem(cfg.dbPath, embedder, dims,
			append([]repository.ChromemOption{repository.WithCompress(cfg.compress)}, opts...)...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", cfg.dbPath))
		}
		return repo, nil

	case storeFirestore:
		if cfg.firestoreProject == "" {
			return nil, goerr.New("firestore-project is required for firestore store")
		}
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase, embedder, dims)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore repository")
		}
		return repo, nil
	}

	return nil, goerr.New("unsupported store", goerr.V("store", cfg.store))
}

// openBrain looks up the collection, creating and seeding it when absent
func (cfg *config) openBrain(ctx context.Context, repo repository.Repository) (*memory.Brain, error) {
	gen, err := memory.NewIDGenerator(cfg.idStrategy)
	if err != nil {
		return nil, err
	}
	return memory.Ensure(ctx, repo, cfg.collection, memory.WithIDGenerator(gen))
}

// searchConfig holds flags of the search agent
type searchConfig struct {
	maxRetries   int64
	initialDelay time.Duration
	maxDelay     time.Duration
	mcpConfig    string
	httpTimeout  time.Duration
}

func searchFlags(cfg *searchConfig) []cli.Flag {
	def := retry.NewDefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "search-max-retries",
			Usage:       "Retries of a failed search agent run (-1 for unbounded)",
			Value:       int64(def.MaxRetries),
			Sources:     cli.EnvVars("HIPPO_SEARCH_MAX_RETRIES"),
			Destination: &cfg.maxRetries,
		},
		&cli.DurationFlag{
			Name:        "search-initial-delay",
			Usage:       "Wait before the first retry",
			Value:       def.InitialDelay,
			Sources:     cli.EnvVars("HIPPO_SEARCH_INITIAL_DELAY"),
			Destination: &cfg.initialDelay,
		},
		&cli.DurationFlag{
			Name:        "search-max-delay",
			Usage:       "Upper bound of the wait between retries",
			Value:       def.MaxDelay,
			Sources:     cli.EnvVars("HIPPO_SEARCH_MAX_DELAY"),
			Destination: &cfg.maxDelay,
		},
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "YAML file listing MCP servers whose tools the search agent may use",
			Sources:     cli.EnvVars("HIPPO_MCP_CONFIG"),
			Destination: &cfg.mcpConfig,
		},
		&cli.DurationFlag{
			Name:        "http-timeout",
			Usage:       "Timeout of HTTP requests made by tools",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("HIPPO_HTTP_TIMEOUT"),
			Destination: &cfg.httpTimeout,
		},
	}
}

func (cfg *searchConfig) retryConfig() (*retry.Config, error) {
	if cfg.maxRetries < int64(retry.Unbounded) {
		return nil, goerr.New("search-max-retries must be -1 or more", goerr.V("value", cfg.maxRetries))
	}

	rc := retry.NewDefaultConfig()
	rc.MaxRetries = int(cfg.maxRetries)
	rc.InitialDelay = cfg.initialDelay
	rc.MaxDelay = cfg.maxDelay
	return rc, nil
}

func (cfg *searchConfig) httpClient() *http.Client {
	return &http.Client{Timeout: cfg.httpTimeout}
}

// closeWithLog closes c and logs a failure
func closeWithLog(ctx context.Context, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		logging.From(ctx).Warn("failed to close", slog.String("target", name), slog.Any("error", err))
	}
}
