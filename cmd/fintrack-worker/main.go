// fintrack-worker consumes queue events and keeps the spreadsheet export in
// sync. It needs the event bus; the spreadsheet is optional and the worker
// degrades to reclassify-only duty without it.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/netzema/fintrack/internal/classifier"
	"github.com/netzema/fintrack/internal/config"
	"github.com/netzema/fintrack/internal/events"
	applog "github.com/netzema/fintrack/internal/log"
	"github.com/netzema/fintrack/internal/sheets"
	"github.com/netzema/fintrack/internal/sheets/google"
	"github.com/netzema/fintrack/internal/storage"
	"github.com/netzema/fintrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker, Level: slog.LevelInfo})
	logger.SetDefault()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if !cfg.HasAMQP() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writer sheets.TransactionWriter
	if cfg.HasSheets() {
		client, err := google.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Spreadsheet export enabled", "spreadsheet", cfg.GoogleSpreadsheetID)
	} else {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, spreadsheet export disabled")
	}

	eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()

	clf := classifier.New(repo, logger.Logger)
	exportWorker := worker.NewExportWorker(repo, writer, clf, cfg.RulesPath, cfg.SyncBatchSize)

	// Catch up on anything missed while the worker was down.
	startupCtx, startupCancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := exportWorker.ProcessPending(startupCtx); err != nil {
		logger.Error("Startup pending check failed", "error", err)
	}
	startupCancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eventsClient.Consume(gctx, func(msg *events.Message) error {
			return exportWorker.HandleMessage(gctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := exportWorker.ProcessPending(gctx); err != nil {
					logger.Error("Periodic pending check failed", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	logger.Info("Worker started", "queue", cfg.AMQPQueue, "interval", cfg.SyncInterval.String())
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
