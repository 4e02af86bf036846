package main

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/winchain/internal/adapters/repository"
	"github.com/okian/winchain/internal/adapters/snapshot"
	"github.com/okian/winchain/internal/app"
	"github.com/okian/winchain/internal/config"
	"github.com/okian/winchain/pkg/logger"
	"github.com/okian/winchain/pkg/metrics"
)

// cli carries state shared by every subcommand once setup has run.
type cli struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:               "winchain",
		Short:             "Find chains of wins between table-tennis players",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		RunE:              c.runServe,
	}
	root.AddCommand(c.serveCmd(), c.rebuildCmd(), c.chainCmd(), c.seedCmd())
	return root
}

// setup loads .env, then config (defaults -> optional file -> env), then
// initializes logging with the configured format and level.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	// A missing .env file is normal outside development.
	_ = godotenv.Load(".env")

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.SetEnabled(cfg.MetricsEnabled)

	c.cfg = cfg
	c.log = logger.Named("cli")
	return nil
}

// runtime bundles the stores and the graph service built from config.
type runtime struct {
	store     repository.Store
	snapshots *snapshot.Store
	svc       *app.Service
}

// open connects storage and the snapshot cache and creates the service.
// extra options are applied after the configured ones.
func (c *cli) open(cmd *cobra.Command, extra ...app.Option) (*runtime, error) {
	ctx := cmd.Context()
	cfg := c.cfg

	store, err := repository.Open(ctx, cfg.StorageDriver, cfg.StorageDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}

	snapCfg := snapshot.DefaultConfig(cfg.SnapshotDir)
	if cfg.SnapshotInMemory {
		snapCfg = snapshot.InMemoryConfig()
	}
	snapCfg.Logger = logger.Named("badger")
	snapshots, err := snapshot.Open(snapCfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(logger.Named("graph-service")),
		app.WithSnapshotStore(snapshots),
		app.WithPageSize(cfg.PageSize),
		app.WithProgressEvery(cfg.ProgressEvery),
		app.WithLazyBuild(cfg.LazyBuild),
		app.WithRebuildOnStart(cfg.RebuildOnStart),
		app.WithRefreshQueueSize(cfg.RefreshQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithRefreshInterval(cfg.RefreshInterval()),
	}
	svc := app.New(store, store, append(opts, extra...)...)

	return &runtime{store: store, snapshots: snapshots, svc: svc}, nil
}

func (r *runtime) Close() error {
	return errors.Join(r.snapshots.Close(), r.store.Close())
}
