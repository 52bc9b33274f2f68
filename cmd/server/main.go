package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"retailpulse/backend/internal/cache"
	"retailpulse/backend/internal/config"
	"retailpulse/backend/internal/httpapi"
	"retailpulse/backend/internal/logging"
	"retailpulse/backend/internal/narrative"
	"retailpulse/backend/internal/service"
	"retailpulse/backend/internal/store"
	"retailpulse/backend/internal/store/memory"
	pgstore "retailpulse/backend/internal/store/postgres"
	sqlitestore "retailpulse/backend/internal/store/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	}

	root := &cobra.Command{
		Use:           "retailpulse",
		Short:         "Sales analytics API for a multi-store retail franchise",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $"+config.ConfigFileEnv+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE:  serve,
		},
		newSeedCommand(&configPath),
	)
	return root
}

func runServer(ctx context.Context, cfg config.Config) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("close error", zap.Error(err))
			}
		}
	}()

	repo, closeRepo, err := openRepository(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	forecastCache, closeCache := buildForecastCache(startupCtx, cfg, logger)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	metrics := httpapi.NewMetrics()
	narrator := narrative.New(narrative.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.NarrativeTimeout(),
	}, logger.Named("narrative"))

	svc := service.New(repo, service.Options{
		ForecastCache: forecastCache,
		ForecastTTL:   cfg.ForecastCacheTTL(),
		Narrator:      narrator,
		ChunkDays:     cfg.FetchChunkDays,
		Concurrency:   cfg.FetchConcurrency,
		Logger:        logger.Named("service"),
		CacheObserver: metrics.ObserveForecastCache,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       metrics,
		Logger:        logger.Named("httpapi"),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.NarrativeTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("retail analytics API listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-sigCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

// openRepository picks Postgres, then SQLite, then the in-memory demo
// dataset. A configured database that cannot be reached is fatal.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, logger.Named("store.postgres"))
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		logger.Info("repository: postgres")
		return pg, pg.Close, nil
	case cfg.SQLitePath != "":
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath, logger.Named("store.sqlite"))
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite %s unavailable: %w", cfg.SQLitePath, err)
		}
		logger.Info("repository: sqlite", zap.String("path", cfg.SQLitePath))
		return db, db.Close, nil
	default:
		logger.Info("repository: in-memory demo dataset")
		return memory.NewSeeded(logger.Named("store.memory")), nil, nil
	}
}

// buildForecastCache always keeps a bounded local LRU and layers Redis
// behind it when REDIS_ADDR answers.
func buildForecastCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.ForecastCache, func() error) {
	local := cache.NewLRUForecastCache(cfg.ForecastCacheSize, cfg.ForecastCacheTTL())
	if cfg.RedisAddr == "" {
		logger.Info("cache: in-process lru", zap.Int("size", cfg.ForecastCacheSize))
		return local, nil
	}

	redisCache := cache.NewRedisForecastCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ForecastCacheTTL())
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using in-process cache only", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = redisCache.Close()
		return local, nil
	}
	logger.Info("cache: lru + redis", zap.String("addr", cfg.RedisAddr))
	return cache.Layered{Local: local, Remote: redisCache, Logger: logger.Named("cache")}, redisCache.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
