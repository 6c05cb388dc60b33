package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/repository"
	"github.com/m-mizutani/hippo/pkg/usecase/memory"
	"github.com/m-mizutani/hippo/pkg/utils/testutil"
	"github.com/urfave/cli/v3"
)

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  config{collection: "history", store: storeChromem, idStrategy: "sequential"},
		},
		{
			name:    "no collection",
			cfg:     config{store: storeChromem, idStrategy: "sequential"},
			wantErr: true,
		},
		{
			name:    "unknown store",
			cfg:     config{collection: "history", store: "redis", idStrategy: "sequential"},
			wantErr: true,
		},
		{
			name:    "unknown id strategy",
			cfg:     config{collection: "history", store: storeFirestore, idStrategy: "random"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
			}
		})
	}

	t.Run("collection error comes first", func(t *testing.T) {
		cfg := config{store: "redis"}
		gt.True(t, cfg.validate() == errCollectionRequired)
	})
}

func TestSearchRetryConfig(t *testing.T) {
	cfg := searchConfig{maxRetries: -1}
	rc, err := cfg.retryConfig()
	gt.NoError(t, err)
	gt.Equal(t, rc.MaxRetries, -1)

	cfg = searchConfig{maxRetries: 3}
	rc, err = cfg.retryConfig()
	gt.NoError(t, err)
	gt.Equal(t, rc.MaxRetries, 3)

	cfg = searchConfig{maxRetries: -2}
	_, err = cfg.retryConfig()
	gt.Error(t, err)
}

func TestNewAnswerModel(t *testing.T) {
	cfg := config{answerProvider: providerClaude}
	_, err := cfg.newAnswerModel(nil)
	gt.Error(t, err)

	cfg = config{answerProvider: providerClaude, anthropicAPIKey: "sk-test"}
	m, err := cfg.newAnswerModel(nil)
	gt.NoError(t, err)
	_, ok := m.(*adapter.ClaudeClient)
	gt.True(t, ok)

	cfg = config{answerProvider: "openai"}
	_, err = cfg.newAnswerModel(nil)
	gt.Error(t, err)
}

func TestSnapshotConfigValidate(t *testing.T) {
	cfg := snapshotConfig{}
	gt.Error(t, cfg.validate("history"))

	cfg = snapshotConfig{path: "a.gob", bucket: "b"}
	gt.Error(t, cfg.validate("history"))

	cfg = snapshotConfig{bucket: "backup"}
	gt.NoError(t, cfg.validate("history"))
	gt.Equal(t, cfg.object, "history.gob")
	gt.Equal(t, cfg.target(), "gs://backup/history.gob")

	cfg = snapshotConfig{path: "a.gob", exportKey: "short"}
	gt.Error(t, cfg.validate("history"))

	cfg = snapshotConfig{path: "a.gob", exportKey: strings.Repeat("k", 32)}
	gt.NoError(t, cfg.validate("history"))
	gt.A(t, cfg.chromemOptions()).Length(1)
}

func TestResetBrain(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.NewChromem("", testutil.NewHashEmbedder(), 0)
	gt.NoError(t, err)

	_, err = memory.Ensure(ctx, repo, "history")
	gt.NoError(t, err)

	var out bytes.Buffer
	gt.NoError(t, resetBrain(ctx, repo, "history", &out))
	gt.S(t, out.String()).Contains(`Brain "history" deleted.`)

	names, err := repo.ListCollections(ctx)
	gt.NoError(t, err)
	gt.A(t, names).Length(0)

	out.Reset()
	gt.NoError(t, resetBrain(ctx, repo, "history", &out))
	gt.S(t, out.String()).Contains(`Brain "history" not found.`)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	testCases := map[string]bool{
		"y\n":   true,
		" y \n": true,
		"n\n":   false,
		"yes\n": false,
		"":      false,
	}

	for input, want := range testCases {
		p := adapter.NewLinePrompter(strings.NewReader(input), nil)
		ok, err := confirm(ctx, p, "? ")
		gt.NoError(t, err)
		gt.Equal(t, ok, want)
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	embedder := testutil.NewHashEmbedder()
	snap := snapshotConfig{path: filepath.Join(t.TempDir(), "history.gob")}
	gt.NoError(t, snap.validate("history"))

	src, err := repository.NewChromem("", embedder, 0)
	gt.NoError(t, err)
	brain, err := memory.Ensure(ctx, src, "history")
	gt.NoError(t, err)
	_, err = brain.Append(ctx, "Water boils at 100 degrees Celsius at sea level.")
	gt.NoError(t, err)

	s, err := snapshotter(src)
	gt.NoError(t, err)
	w, err := snap.create(ctx)
	gt.NoError(t, err)
	gt.NoError(t, s.Export(ctx, w, "history"))
	gt.NoError(t, w.Close())

	dst, err := repository.NewChromem("", embedder, 0)
	gt.NoError(t, err)
	d, err := snapshotter(dst)
	gt.NoError(t, err)
	r, err := snap.open(ctx)
	gt.NoError(t, err)
	gt.NoError(t, d.Import(ctx, r, "history"))

	col, err := dst.GetCollection(ctx, "history")
	gt.NoError(t, err)
	n, err := memory.Open(col).Count(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 3)
}

func TestReviewMemoriesEnv(t *testing.T) {
	parse := func(t *testing.T) (sessionConfig, error) {
		var cfg sessionConfig
		cmd := &cli.Command{
			Name:   "hippo",
			Flags:  sessionFlags(&cfg),
			Action: func(ctx context.Context, c *cli.Command) error { return nil },
		}
		err := cmd.Run(context.Background(), []string{"hippo"})
		return cfg, err
	}

	t.Run("boolean value enables review", func(t *testing.T) {
		t.Setenv("REVIEW_MEMORIES", "1")
		cfg, err := parse(t)
		gt.NoError(t, err)
		gt.True(t, cfg.review)
	})

	t.Run("false value keeps review off", func(t *testing.T) {
		t.Setenv("REVIEW_MEMORIES", "0")
		cfg, err := parse(t)
		gt.NoError(t, err)
		gt.False(t, cfg.review)
	})

	t.Run("non boolean value is rejected", func(t *testing.T) {
		t.Setenv("REVIEW_MEMORIES", "yes")
		_, err := parse(t)
		gt.Error(t, err)
	})
}
