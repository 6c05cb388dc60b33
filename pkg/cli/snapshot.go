package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/repository"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

var errSnapshotUnsupported = goerr.New("store does not support snapshots")

// snapshotConfig points at a local file or a Cloud Storage object
type snapshotConfig struct {
	path      string
	bucket    string
	object    string
	exportKey string
}

func snapshotFlags(cfg *snapshotConfig, pathFlag, pathUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        pathFlag,
			Usage:       pathUsage,
			Destination: &cfg.path,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket of the snapshot",
			Sources:     cli.EnvVars("HIPPO_SNAPSHOT_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "object",
			Usage:       "Cloud Storage object of the snapshot (default: <collection>.gob)",
			Destination: &cfg.object,
		},
		&cli.StringFlag{
			Name:        "export-key",
			Usage:       "AES key (32 bytes) encrypting the snapshot",
			Sources:     cli.EnvVars("HIPPO_EXPORT_KEY"),
			Destination: &cfg.exportKey,
		},
	}
}

func (cfg *snapshotConfig) validate(collection string) error {
	switch {
	case cfg.path != "" && cfg.bucket != "":
		return goerr.New("file and bucket are exclusive")
	case cfg.path == "" && cfg.bucket == "":
		return goerr.New("file or bucket is required")
	}
	if cfg.bucket != "" && cfg.object == "" {
		cfg.object = collection + ".gob"
	}
	if cfg.exportKey != "" && len(cfg.exportKey) != 32 {
		return goerr.New("export key must be 32 bytes", goerr.V("length", len(cfg.exportKey)))
	}
	return nil
}

func (cfg *snapshotConfig) chromemOptions() []repository.ChromemOption {
	if cfg.exportKey == "" {
		return nil
	}
	return []repository.ChromemOption{repository.WithExportKey(cfg.exportKey)}
}

func snapshotter(repo repository.Repository) (repository.Snapshotter, error) {
	s, ok := repo.(repository.Snapshotter)
	if !ok {
		return nil, goerr.Wrap(errSnapshotUnsupported, "export and import need the chromem store")
	}
	return s, nil
}

func exportCommand() *cli.Command {
	var (
		cfg  config
		snap snapshotConfig
	)

	flags := snapshotFlags(&snap, "output", "File to write the snapshot to")
	flags = append(flags, maintenanceFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Save a snapshot of the brain",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := snap.validate(cfg.collection); err != nil {
				return err
			}
			ctx, repo, cleanup, err := cfg.openRepository(ctx, snap.chromemOptions()...)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := snapshotter(repo)
			if err != nil {
				return err
			}

			w, err := snap.create(ctx)
			if err != nil {
				return err
			}
			if err := s.Export(ctx, w, cfg.collection); err != nil {
				_ = w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return goerr.Wrap(err, "failed to save snapshot")
			}

			logging.From(ctx).Info("brain exported", "collection", cfg.collection, "target", snap.target())
			fmt.Fprintf(c.Root().Writer, "Exported %q to %s\n", cfg.collection, snap.target())
			return nil
		},
	}
}

func importCommand() *cli.Command {
	var (
		cfg  config
		snap snapshotConfig
	)

	flags := snapshotFlags(&snap, "input", "File to read the snapshot from")
	flags = append(flags, maintenanceFlags(&cfg)...)

	return &cli.Command{
		Name:  "import",
		Usage: "Restore the brain from a snapshot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := snap.validate(cfg.collection); err != nil {
				return err
			}
			ctx, repo, cleanup, err := cfg.openRepository(ctx, snap.chromemOptions()...)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := snapshotter(repo)
			if err != nil {
				return err
			}

			r, err := snap.open(ctx)
			if err != nil {
				return err
			}
			if err := s.Import(ctx, r, cfg.collection); err != nil {
				return err
			}

			logging.From(ctx).Info("brain imported", "collection", cfg.collection, "source", snap.target())
			fmt.Fprintf(c.Root().Writer, "Imported %q from %s\n", cfg.collection, snap.target())
			return nil
		},
	}
}

func (cfg *snapshotConfig) target() string {
	if cfg.bucket != "" {
		return "gs://" + cfg.bucket + "/" + cfg.object
	}
	return cfg.path
}

func (cfg *snapshotConfig) create(ctx context.Context) (io.WriteCloser, error) {
	if cfg.bucket == "" {
		f, err := os.Create(cfg.path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create snapshot file", goerr.V("path", cfg.path))
		}
		return f, nil
	}

	st, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, err
	}
	return st.Put(ctx, cfg.object)
}

// open reads the whole snapshot because import needs to seek
func (cfg *snapshotConfig) open(ctx context.Context) (io.ReadSeeker, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if cfg.bucket == "" {
		rc, err = os.Open(cfg.path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open snapshot file", goerr.V("path", cfg.path))
		}
	} else {
		st, err := adapter.NewStorage(ctx, cfg.bucket)
		if err != nil {
			return nil, err
		}
		if rc, err = st.Get(ctx, cfg.object); err != nil {
			return nil, err
		}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read snapshot", goerr.V("source", cfg.target()))
	}
	return bytes.NewReader(data), nil
}
