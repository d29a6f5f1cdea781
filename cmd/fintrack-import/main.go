// fintrack-import loads a bank CSV statement export into the store and runs
// the classifier over the new rows.
//
// Usage:
//
//	fintrack-import [-category Transfer] [-ignore-iban DE12...,DE34...] [-ignore-party "Own Account"] statement.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/netzema/fintrack/internal/classifier"
	"github.com/netzema/fintrack/internal/config"
	"github.com/netzema/fintrack/internal/ingest"
	applog "github.com/netzema/fintrack/internal/log"
	"github.com/netzema/fintrack/internal/rules"
	"github.com/netzema/fintrack/internal/storage"
)

func main() {
	_ = godotenv.Load()

	category := flag.String("category", "", "category assigned to every imported row")
	ignoreIBANs := flag.String("ignore-iban", "", "comma separated counterparty IBANs to skip")
	ignoreParties := flag.String("ignore-party", "", "comma separated counterparty names to skip")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fintrack-import [flags] <statement.csv>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	csvPath := flag.Arg(0)

	logger := applog.New(applog.Config{Component: applog.ComponentIngest, Level: slog.LevelInfo})
	logger.SetDefault()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	f, err := os.Open(csvPath)
	if err != nil {
		logger.Error("Failed to open CSV file", "error", err, "path", csvPath)
		os.Exit(1)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stats, err := ingest.NewCSVImporter(repo, logger.Logger).Import(ctx, f, ingest.ImportOptions{
		Category:             *category,
		IgnoreIBANs:          splitList(*ignoreIBANs),
		IgnoreCounterparties: splitList(*ignoreParties),
	})
	if err != nil {
		logger.Error("Import failed", "error", err, "path", csvPath)
		os.Exit(1)
	}

	base, err := rules.Load(cfg.RulesPath)
	if err != nil {
		logger.Error("Failed to load rules", "error", err, "path", cfg.RulesPath)
		os.Exit(1)
	}
	result, err := classifier.New(repo, logger.Logger).Apply(ctx, base, false)
	if err != nil {
		logger.Error("Classification failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Import complete",
		"rows", stats.Rows, "imported", stats.Imported, "skipped", stats.Skipped,
		"classified", result.Classified)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
