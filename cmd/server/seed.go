package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"retailpulse/backend/internal/analytics"
	"retailpulse/backend/internal/config"
	"retailpulse/backend/internal/logging"
	"retailpulse/backend/internal/store"
	"retailpulse/backend/internal/store/memory"
	pgstore "retailpulse/backend/internal/store/postgres"
	sqlitestore "retailpulse/backend/internal/store/sqlite"
)

type seedOptions struct {
	Driver string
	Path   string
	Days   int
	Seed   uint64
	End    string
}

// seedTarget is a writable SQL backend.
type seedTarget interface {
	store.Loader
	store.Repository
	Close() error
}

func newSeedCommand(configPath *string) *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a deterministic demo dataset and the seeded accounts into a database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runSeed(cmd.Context(), cfg, opts, logger)
		},
	}
	cmd.Flags().StringVar(&opts.Driver, "driver", "sqlite", "target database: sqlite or postgres (uses DATABASE_URL)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "sqlite file (default SQLITE_PATH, then retailpulse.db)")
	cmd.Flags().IntVar(&opts.Days, "days", 365, "days of history to generate")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", memory.DemoSeed, "generator seed")
	cmd.Flags().StringVar(&opts.End, "end", "", "last generated day (default today)")
	return cmd
}

func openSeedTarget(ctx context.Context, cfg config.Config, opts seedOptions, logger *zap.Logger) (seedTarget, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "sqlite":
		path := opts.Path
		if path == "" {
			path = cfg.SQLitePath
		}
		if path == "" {
			path = "retailpulse.db"
		}
		return sqlitestore.Open(ctx, path, logger.Named("store.sqlite"))
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for --driver postgres")
		}
		return pgstore.New(ctx, cfg.DatabaseURL, logger.Named("store.postgres"))
	default:
		return nil, fmt.Errorf("unknown driver %q", opts.Driver)
	}
}

func runSeed(ctx context.Context, cfg config.Config, opts seedOptions, logger *zap.Logger) error {
	if opts.Days < 1 {
		return fmt.Errorf("--days must be positive, got %d", opts.Days)
	}
	end := time.Now().UTC()
	if opts.End != "" {
		parsed, err := analytics.ParseDate(opts.End)
		if err != nil {
			return err
		}
		end = parsed
	}

	target, err := openSeedTarget(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer func() { _ = target.Close() }()

	return seedDatabase(ctx, target, memory.DemoOptions{Seed: opts.Seed, End: end, Days: opts.Days}, logger)
}

// seedDatabase migrates target, loads the demo dataset unless sales rows
// already exist, and creates the seeded accounts that are missing.
func seedDatabase(ctx context.Context, target seedTarget, demo memory.DemoOptions, logger *zap.Logger) error {
	if err := target.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	stores, err := target.ListStores(ctx)
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}
	if len(stores) > 0 {
		logger.Info("sales data already present; skipping dataset load", zap.Strings("stores", stores))
	} else {
		summaries, details := memory.GenerateDemo(demo)
		if err := target.Load(ctx, summaries, details); err != nil {
			return fmt.Errorf("load demo dataset: %w", err)
		}
	}

	for _, account := range memory.SeedAccounts(logger) {
		err := target.CreateUser(ctx, account)
		switch {
		case errors.Is(err, store.ErrInvalidUser):
			logger.Info("account exists; skipped", zap.String("username", account.Username))
		case err != nil:
			return fmt.Errorf("create account %s: %w", account.Username, err)
		}
	}
	return nil
}
