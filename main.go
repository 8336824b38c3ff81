package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"leadscout/config"
	"leadscout/internal/bootstrap"
	"leadscout/pkg/logger"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "leadscout",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "all", "Run mode: api (webhook receiver), worker (mailbox scanner), all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Watching mailbox %s (scheduler=%v, interval=%v, batch window %d/%v)",
		cfg.MailboxAddress, cfg.SchedulerEnabled, cfg.ScanInterval, cfg.BatchWindowMax, cfg.BatchWindow)
	if cfg.ResetOnStart {
		logger.Warn("RESET_ON_START set: stored mailbox cursor will be cleared")
	}

	switch *mode {
	case "api":
		runAPI(ctx, cfg)
	case "worker":
		runWorker(ctx, cfg)
	case "all":
		go runWorker(ctx, cfg)
		runAPI(ctx, cfg)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("Webhook listener on %s", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down webhook listener (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Shutdown error: %v", err)
			return
		}
		logger.Info("Webhook listener stopped, in-flight batches drained")
	}
}

func runWorker(ctx context.Context, cfg *config.Config) {
	worker, cleanup, err := bootstrap.NewWorker(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize worker: %v", err)
	}
	defer cleanup()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down scanner (timeout: %v)...", shutdownTimeout)

		done := make(chan struct{})
		go func() {
			worker.Stop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("Scanner stopped")
		case <-time.After(shutdownTimeout):
			logger.Warn("Scanner shutdown timed out, abandoning current batch")
		}
	}()

	logger.Info("Starting mailbox scanner...")
	worker.Start()
}
