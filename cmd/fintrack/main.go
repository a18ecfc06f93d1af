package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting fintrack", "port", cfg.Port, "backend", cfg.DataBackend)

	ctx := context.Background()
	repo := cli.InitStorage(ctx, logger, cfg)
	defer repo.Close()

	events, err := cli.NewEventSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize event publishing", log.FieldError, err)
		os.Exit(1)
	}
	defer events.Close()

	svc, err := cli.NewServices(ctx, cfg, repo, events, logger)
	if err != nil {
		logger.Error("Failed to initialize services", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:                   ":" + cfg.Port,
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		Logger:                 logger,
	}, svc.Ledger, svc.Investments, svc.Auth, repo)

	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		svc.Caches.Stop()
	})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logger.Info("Listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		worker.RunPurge(gctx, svc.Auth, purgeInterval, logger)
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
