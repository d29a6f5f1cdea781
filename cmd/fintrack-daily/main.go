// fintrack-daily is the cron entry point. It rotates the log file, downloads
// new booked transactions at most once per day, publishes an event when new
// rows arrived, and re-runs the classifier over whatever is still unlabeled.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/netzema/fintrack/internal/bank"
	"github.com/netzema/fintrack/internal/classifier"
	"github.com/netzema/fintrack/internal/config"
	"github.com/netzema/fintrack/internal/events"
	"github.com/netzema/fintrack/internal/ingest"
	applog "github.com/netzema/fintrack/internal/log"
	"github.com/netzema/fintrack/internal/rules"
	"github.com/netzema/fintrack/internal/schedule"
	"github.com/netzema/fintrack/internal/storage"
)

func main() {
	_ = godotenv.Load()

	force := flag.Bool("force", false, "re-evaluate every transaction against the rules, not just unlabeled ones")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	logger, logFile, err := openLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.SetDefault()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var publisher *events.Client
	if cfg.HasAMQP() {
		publisher, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Event bus unavailable, continuing without it", "error", err)
		} else {
			defer publisher.Close()
		}
	}

	download := func(ctx context.Context) error {
		if !cfg.HasBank() {
			logger.InfoContext(ctx, "Bank feed not configured, skipping download")
			return nil
		}
		feed, err := bank.NewClient(bank.Config{
			BaseURL:   cfg.BankBaseURL,
			SecretID:  cfg.BankSecretID,
			SecretKey: cfg.BankSecretKey,
			AccountID: cfg.BankAccountID,
		})
		if err != nil {
			return err
		}
		stats, err := ingest.NewDownloader(feed, repo, logger.Logger).Run(ctx)
		if err != nil {
			return err
		}
		if stats.Inserted > 0 && publisher != nil {
			if err := publisher.Publish(ctx, events.NewIngestCompleted(stats.Inserted)); err != nil {
				logger.WarnContext(ctx, "Failed to publish ingest event", "error", err)
			}
		}
		return nil
	}

	classify := func(ctx context.Context) error {
		base, err := rules.Load(cfg.RulesPath)
		if err != nil {
			return err
		}
		result, err := classifier.New(repo, logger.Logger).Apply(ctx, base, *force)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Classification finished",
			"scanned", result.Scanned, "classified", result.Classified)
		return nil
	}

	runner := schedule.NewRunner(download, classify, cfg.StampPath, logger.Logger)
	runErr := runner.Run(ctx)
	if runErr != nil {
		logger.ErrorContext(ctx, "Daily run finished with errors", "error", runErr)
	} else {
		logger.InfoContext(ctx, "Daily run finished")
	}

	// one separator per run keeps the rotating log readable
	fmt.Fprintln(logFile, strings.Repeat("-", 60))

	if runErr != nil {
		logFile.Close()
		os.Exit(1)
	}
}

// openLogger appends to the daily log file, truncating it first once it grows
// past MaxLogSize, and mirrors records to stderr for interactive runs.
func openLogger(path string) (*applog.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	if err := schedule.RotateLog(path, schedule.MaxLogSize); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	logger := applog.New(applog.Config{
		Component: applog.ComponentSchedule,
		Level:     slog.LevelInfo,
		Handler:   slog.NewTextHandler(io.MultiWriter(f, os.Stderr), &slog.HandlerOptions{Level: slog.LevelInfo}),
	})
	return logger, f, nil
}
