package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/netzema/fintrack/internal/core"
)

type fakeFeed struct {
	txs []core.Transaction
}

func (f *fakeFeed) BookedTransactions(context.Context) ([]core.Transaction, error) {
	return f.txs, nil
}

type fakeStore struct {
	byKey map[string]core.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{byKey: make(map[string]core.Transaction)}
}

func (s *fakeStore) Insert(_ context.Context, tx core.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}
	key := tx.NaturalKey()
	if _, ok := s.byKey[key]; ok {
		return false, nil
	}
	s.byKey[key] = tx
	return true, nil
}

func feedTxn(id, date string, cents int64, counterparty, remittance string) core.Transaction {
	d, _ := core.ParseDate(date)
	return core.Transaction{
		ID:           id,
		BookingDate:  d,
		Amount:       core.Money{Cents: cents},
		Currency:     "EUR",
		Counterparty: counterparty,
		Remittance:   remittance,
		Source:       core.SourceAPI,
	}
}

func TestDownloaderRun(t *testing.T) {
	feed := &fakeFeed{txs: []core.Transaction{
		feedTxn("tx-1", "2024-03-01", -1250, "Coffee Shop", "POS 1"),
		feedTxn("tx-2", "2024-03-02", -500, "Bakery", "POS 2"),
	}}
	store := newFakeStore()
	d := NewDownloader(feed, store, nil)

	stats, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Fetched != 2 || stats.Inserted != 2 {
		t.Errorf("stats = %+v, want 2 fetched, 2 inserted", stats)
	}
}

func TestDownloaderIdempotent(t *testing.T) {
	feed := &fakeFeed{txs: []core.Transaction{
		feedTxn("tx-1", "2024-03-01", -1250, "Coffee Shop", "POS 1"),
	}}
	store := newFakeStore()
	d := NewDownloader(feed, store, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	stats, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if stats.Inserted != 0 {
		t.Errorf("second run Inserted = %d, want 0", stats.Inserted)
	}
}

const germanCSV = "Buchungstag;Name Zahlungsbeteiligter;Verwendungszweck;IBAN Zahlungsbeteiligter;Betrag;Waehrung\n" +
	"05.03.2024;REWE Markt;REWE SAGT DANKE;DE02120300000000202051;-23,45;EUR\n" +
	"06.03.2024;Broker AG;Monatliches Sparen;DE99999999990000000001;-500,00;EUR\n" +
	"07.03.2024;;;;;\n" +
	"08.03.2024;Arbeitgeber GmbH;Gehalt Maerz;DE44500105175407324931;2.500,00;EUR\n"

func TestCSVImport(t *testing.T) {
	store := newFakeStore()
	im := NewCSVImporter(store, nil)

	stats, err := im.Import(context.Background(), strings.NewReader(germanCSV), ImportOptions{
		IgnoreIBANs: []string{"DE99999999990000000001"},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stats.Rows != 4 {
		t.Errorf("Rows = %d, want 4", stats.Rows)
	}
	if stats.Imported != 2 {
		t.Errorf("Imported = %d, want 2", stats.Imported)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2 (ignored IBAN and empty row)", stats.Skipped)
	}

	var salary *core.Transaction
	for _, tx := range store.byKey {
		if tx.Counterparty == "Arbeitgeber GmbH" {
			salary = &tx
			break
		}
	}
	if salary == nil {
		t.Fatal("imported salary row not found")
	}
	if salary.Amount.Cents != 250000 {
		t.Errorf("salary Amount = %d, want 250000", salary.Amount.Cents)
	}
	if salary.BookingDate.ISO() != "2024-03-08" {
		t.Errorf("salary BookingDate = %s, want 2024-03-08", salary.BookingDate.ISO())
	}
	if salary.Source != core.SourceCSV {
		t.Errorf("salary Source = %s, want csv", salary.Source)
	}
	if salary.ID == "" {
		t.Error("imported row has no generated id")
	}
}

func TestCSVImportSemicolonReadsDotAsThousands(t *testing.T) {
	store := newFakeStore()
	im := NewCSVImporter(store, nil)

	csvData := "Buchungstag;Name Zahlungsbeteiligter;Verwendungszweck;Betrag\n" +
		"08.03.2024;Arbeitgeber GmbH;Gehalt Maerz;1.234\n"
	stats, err := im.Import(context.Background(), strings.NewReader(csvData), ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stats.Imported != 1 {
		t.Fatalf("Imported = %d, want 1", stats.Imported)
	}
	for _, tx := range store.byKey {
		if tx.Amount.Cents != 123400 {
			t.Errorf("Amount = %d, want 123400 (1234 euros)", tx.Amount.Cents)
		}
	}
}

func TestCSVImportDedupesReimport(t *testing.T) {
	store := newFakeStore()
	im := NewCSVImporter(store, nil)
	ctx := context.Background()

	if _, err := im.Import(ctx, strings.NewReader(germanCSV), ImportOptions{}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	stats, err := im.Import(ctx, strings.NewReader(germanCSV), ImportOptions{})
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if stats.Imported != 0 {
		t.Errorf("re-import Imported = %d, want 0", stats.Imported)
	}
}

func TestCSVImportCategoryAndIgnoredParty(t *testing.T) {
	store := newFakeStore()
	im := NewCSVImporter(store, nil)

	csvData := "Date,Counterparty,Description,Amount\n" +
		"2024-03-10,Broker AG,monthly savings,-500.00\n" +
		"2024-03-11,Own Account,internal move,-10.00\n"

	stats, err := im.Import(context.Background(), strings.NewReader(csvData), ImportOptions{
		Category:             core.CategoryTransfer,
		IgnoreCounterparties: []string{"own account"},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stats.Imported != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 imported, 1 skipped", stats)
	}
	for _, tx := range store.byKey {
		if tx.Category != core.CategoryTransfer {
			t.Errorf("Category = %q, want %q", tx.Category, core.CategoryTransfer)
		}
	}
}

func TestCSVImportMissingColumns(t *testing.T) {
	im := NewCSVImporter(newFakeStore(), nil)
	_, err := im.Import(context.Background(), strings.NewReader("Foo;Bar\n1;2\n"), ImportOptions{})
	if err == nil {
		t.Error("Import() error = nil, want missing column error")
	}
}
