package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/runpanel/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/runpanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/runpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/runpanel/internal/application"
	"github.com/ericfisherdev/runpanel/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"default_run_retention", cfg.DefaultRunRetention,
		"incremental_fetch_count", cfg.IncrementalFetchCount,
		"fetch_concurrency", cfg.FetchConcurrency,
		"secret_key_set", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", version)

	// 5. Wire driven adapters.
	repoStore := sqliteadapter.NewTrackedRepoRepo(db)
	serverStore := sqliteadapter.NewServerRepo(db)
	settingsStore := sqliteadapter.NewUserSettingsRepo(db).WithDefaultRetention(cfg.DefaultRunRetention)
	credStore, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	if cfg.SecretKey == nil {
		slog.Warn("RUNPANEL_SECRET_KEY not set, server tokens cannot be stored and fetches are anonymous")
	}

	fetcher := githubadapter.NewPool()

	// 6. Core services.
	caches := application.NewCacheRegistry(cfg.DefaultRunRetention)
	locks := application.NewRefreshRegistry()
	coordinator := application.NewCoordinator(caches, locks, fetcher,
		application.WithIncrementalFetchCount(cfg.IncrementalFetchCount),
		application.WithFetchConcurrency(cfg.FetchConcurrency),
		application.WithStaleAfter(cfg.StaleAfter),
		application.WithLogger(logger),
	)
	statusSvc := application.NewStatusService(coordinator, caches, repoStore, serverStore, credStore, settingsStore)

	// 7. Create and start poll service.
	pollSvc := application.NewPollService(statusSvc, coordinator, caches, repoStore, cfg.PollInterval)
	go pollSvc.Start(ctx)

	// 8. HTTP API.
	apiHandler := httphandler.NewHandler(statusSvc, pollSvc, locks, repoStore, serverStore, credStore, settingsStore, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A full refresh of a large repository can take a while.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("runpanel started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown; in-flight refreshes release their locks on return.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete", "refreshes_in_flight", locks.Len(), "cached_clients", fetcher.Len())
	return nil
}
