package classifier

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/netzema/fintrack/internal/core"
	"github.com/netzema/fintrack/internal/rules"
)

type fakeStore struct {
	txs map[string]core.Transaction
}

func newFakeStore(txs ...core.Transaction) *fakeStore {
	s := &fakeStore{txs: make(map[string]core.Transaction)}
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}
	return s
}

func (s *fakeStore) sorted() []core.Transaction {
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListUnclassified(_ context.Context, _ int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range s.sorted() {
		if tx.Category == "" {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAll(_ context.Context) ([]core.Transaction, error) {
	return s.sorted(), nil
}

func (s *fakeStore) SetCategory(_ context.Context, id, category string) error {
	tx, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("no transaction with id %s", id)
	}
	tx.Category = category
	s.txs[id] = tx
	return nil
}

func txn(id, remittance, category string) core.Transaction {
	d, _ := core.ParseDate("2024-03-05")
	return core.Transaction{
		ID:          id,
		BookingDate: d,
		Amount:      core.Money{Cents: -1500},
		Currency:    "EUR",
		Remittance:  remittance,
		Category:    category,
		Source:      core.SourceAPI,
	}
}

func testBase(t *testing.T) *rules.Base {
	t.Helper()
	base, err := rules.New([]rules.Rule{
		{Match: "rewe", Field: rules.FieldRemittance, Category: "Groceries"},
		{Match: "netflix", Field: rules.FieldRemittance, Category: "Subscriptions"},
	})
	if err != nil {
		t.Fatalf("rules.New() error = %v", err)
	}
	return base
}

func TestApplyClassifiesOnlyUnlabeled(t *testing.T) {
	store := newFakeStore(
		txn("tx-1", "REWE SAGT DANKE", ""),
		txn("tx-2", "NETFLIX.COM", "Eating out"),
		txn("tx-3", "unknown merchant", ""),
	)
	c := New(store, nil)

	res, err := c.Apply(context.Background(), testBase(t), false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2", res.Scanned)
	}
	if res.Classified != 1 {
		t.Errorf("Classified = %d, want 1", res.Classified)
	}

	if got := store.txs["tx-1"].Category; got != "Groceries" {
		t.Errorf("tx-1 category = %q, want Groceries", got)
	}
	if got := store.txs["tx-2"].Category; got != "Eating out" {
		t.Errorf("tx-2 category = %q, manual label must survive a normal pass", got)
	}
	if got := store.txs["tx-3"].Category; got != "" {
		t.Errorf("tx-3 category = %q, want unclassified", got)
	}
}

func TestApplyForceOverridesMatches(t *testing.T) {
	store := newFakeStore(
		txn("tx-1", "NETFLIX.COM", "Eating out"),
		txn("tx-2", "handwritten label", "Gifts"),
	)
	c := New(store, nil)

	res, err := c.Apply(context.Background(), testBase(t), true)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Classified != 1 {
		t.Errorf("Classified = %d, want 1", res.Classified)
	}

	if got := store.txs["tx-1"].Category; got != "Subscriptions" {
		t.Errorf("tx-1 category = %q, want rule match to override", got)
	}
	if got := store.txs["tx-2"].Category; got != "Gifts" {
		t.Errorf("tx-2 category = %q, no-match must keep the manual label", got)
	}
}

func TestApplyIdempotent(t *testing.T) {
	store := newFakeStore(txn("tx-1", "REWE SAGT DANKE", ""))
	c := New(store, nil)
	base := testBase(t)

	if _, err := c.Apply(context.Background(), base, false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	res, err := c.Apply(context.Background(), base, false)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if res.Classified != 0 {
		t.Errorf("second pass Classified = %d, want 0", res.Classified)
	}

	res, err = c.Apply(context.Background(), base, true)
	if err != nil {
		t.Fatalf("forced Apply() error = %v", err)
	}
	if res.Classified != 0 {
		t.Errorf("forced repeat Classified = %d, want 0", res.Classified)
	}
}
