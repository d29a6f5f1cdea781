// Package worker processes queued events in the background: classified
// transactions are mirrored to the configured spreadsheet and ingest
// completions trigger a classification pass.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/netzema/fintrack/internal/classifier"
	"github.com/netzema/fintrack/internal/core"
	"github.com/netzema/fintrack/internal/events"
	"github.com/netzema/fintrack/internal/rules"
	"github.com/netzema/fintrack/internal/sheets"
)

// Store is the slice of the transaction store the worker needs.
type Store interface {
	Get(ctx context.Context, id string) (core.Transaction, error)
	ListUnexported(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkExported(ctx context.Context, id string) error
}

type ExportWorker struct {
	store      Store
	writer     sheets.TransactionWriter
	classifier *classifier.Classifier
	rulesPath  string
	batchSize  int
}

func NewExportWorker(store Store, writer sheets.TransactionWriter, clf *classifier.Classifier, rulesPath string, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExportWorker{
		store:      store,
		writer:     writer,
		classifier: clf,
		rulesPath:  rulesPath,
		batchSize:  batchSize,
	}
}

// HandleMessage processes a single event from the queue.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *events.Message) error {
	switch msg.Type {
	case events.TypeTransactionLabeled:
		return w.exportOne(ctx, msg.TransactionID)
	case events.TypeIngestCompleted:
		return w.reclassify(ctx)
	default:
		return fmt.Errorf("unhandled message type %q", msg.Type)
	}
}

func (w *ExportWorker) exportOne(ctx context.Context, id string) error {
	if w.writer == nil {
		slog.WarnContext(ctx, "No sheet writer configured, skipping export", "id", id)
		return nil
	}

	tx, err := w.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.writer.Append(ctx, tx)
	if err != nil {
		return fmt.Errorf("append to sheet: %w", err)
	}
	if err := w.store.MarkExported(ctx, tx.ID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Exported transaction", "id", tx.ID, "row", ref)
	return nil
}

// reclassify reloads the rule file and runs a normal classification pass, so
// the worker picks up rule edits without a restart.
func (w *ExportWorker) reclassify(ctx context.Context) error {
	base, err := rules.Load(w.rulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	res, err := w.classifier.Apply(ctx, base, false)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	slog.InfoContext(ctx, "Reclassified after ingest",
		"scanned", res.Scanned, "classified", res.Classified)
	return nil
}

// ProcessPending exports transactions that were never announced over the
// queue. This is a backup mechanism in case messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	if w.writer == nil {
		return nil
	}

	pending, err := w.store.ListUnexported(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unexported: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))
	for _, tx := range pending {
		if _, err := w.writer.Append(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", tx.ID, "error", err)
			continue
		}
		if err := w.store.MarkExported(ctx, tx.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark export", "id", tx.ID, "error", err)
		}
	}
	return nil
}
