// Package classifier applies the rule base to stored transactions.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/netzema/fintrack/internal/core"
	"github.com/netzema/fintrack/internal/rules"
)

// Store is the slice of the transaction store the classifier needs.
type Store interface {
	ListUnclassified(ctx context.Context, limit int) ([]core.Transaction, error)
	ListAll(ctx context.Context) ([]core.Transaction, error)
	SetCategory(ctx context.Context, id, category string) error
}

// Result reports what a classification pass did.
type Result struct {
	Scanned    int
	Classified int
}

type Classifier struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{store: store, logger: logger}
}

// Apply runs the rule base over stored transactions. By default only
// unclassified transactions are considered, so manual labels stay untouched.
// With force every transaction is re-evaluated: a matching rule overrides the
// stored category, while transactions no rule matches keep whatever category
// they already have.
func (c *Classifier) Apply(ctx context.Context, base *rules.Base, force bool) (Result, error) {
	var (
		txs []core.Transaction
		err error
	)
	if force {
		txs, err = c.store.ListAll(ctx)
	} else {
		txs, err = c.store.ListUnclassified(ctx, 0)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load transactions: %w", err)
	}

	res := Result{Scanned: len(txs)}
	for _, tx := range txs {
		category, ok := base.Classify(tx)
		if !ok {
			continue
		}
		if tx.Category == category {
			continue
		}
		if err := c.store.SetCategory(ctx, tx.ID, category); err != nil {
			return res, fmt.Errorf("classify %s: %w", tx.ID, err)
		}
		res.Classified++
	}

	c.logger.InfoContext(ctx, "Classification pass finished",
		"scanned", res.Scanned, "classified", res.Classified, "force", force)
	return res, nil
}
