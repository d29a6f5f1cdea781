// Package ingest brings transactions into the store, either from the bank
// feed or from CSV statement exports, with dedupe on the natural key.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/netzema/fintrack/internal/core"
)

// Feed is the slice of the bank client the downloader needs.
type Feed interface {
	BookedTransactions(ctx context.Context) ([]core.Transaction, error)
}

// Store is the slice of the transaction store the downloader needs.
type Store interface {
	Insert(ctx context.Context, tx core.Transaction) (bool, error)
}

// Stats reports what a download run did.
type Stats struct {
	Fetched  int
	Inserted int
}

type Downloader struct {
	feed   Feed
	store  Store
	logger *slog.Logger
}

func NewDownloader(feed Feed, store Store, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{feed: feed, store: store, logger: logger}
}

// Run fetches the booked transactions and inserts the ones the store has not
// seen yet. Running it twice over the same feed inserts nothing the second
// time.
func (d *Downloader) Run(ctx context.Context) (Stats, error) {
	txs, err := d.feed.BookedTransactions(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch feed: %w", err)
	}

	stats := Stats{Fetched: len(txs)}
	for _, tx := range txs {
		inserted, err := d.store.Insert(ctx, tx)
		if err != nil {
			return stats, fmt.Errorf("store transaction %s: %w", tx.ID, err)
		}
		if inserted {
			stats.Inserted++
		}
	}

	d.logger.InfoContext(ctx, "Download finished",
		"fetched", stats.Fetched, "inserted", stats.Inserted)
	return stats, nil
}
