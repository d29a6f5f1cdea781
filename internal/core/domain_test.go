package core

import (
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in  string
		iso string
		ok  bool
	}{
		{"2024-01-05", "2024-01-05", true},
		{"05.01.2024", "2024-01-05", true},
		{"05/01/2024", "2024-01-05", true},
		{" 2024-01-05 ", "2024-01-05", true},
		{"", "", false},
		{"2024/01/05", "", false},
		{"not a date", "", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || d.ISO() != tc.iso {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.iso, d.ISO(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:           "tx-1",
		BookingDate:  NewDate(2024, 1, 5),
		Amount:       Money{Cents: -1250},
		Currency:     "EUR",
		Counterparty: "COFFEE SHOP X",
		Remittance:   "POS COFFEE SHOP X 0105",
		Source:       SourceAPI,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{BookingDate: NewDate(2024, 1, 5), Source: SourceAPI},         // empty id
		{ID: "tx-2", Source: SourceAPI},                               // zero date
		{ID: "tx-3", BookingDate: NewDate(2024, 1, 5), Source: "ftp"}, // bad source
		{ID: "tx-4", BookingDate: NewDate(2024, 1, 5), Source: SourceCSV, Remittance: string(make([]byte, 501))},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNaturalKey(t *testing.T) {
	a := Transaction{
		BookingDate:  NewDate(2024, 1, 5),
		Amount:       Money{Cents: -1250},
		Counterparty: "COFFEE SHOP X",
		Remittance:   "POS COFFEE SHOP X 0105",
	}
	b := a
	b.ID = "different-id"
	b.Counterparty = "  coffee  shop x "
	b.Remittance = "POS  COFFEE SHOP X  0105"
	if a.NaturalKey() != b.NaturalKey() {
		t.Fatalf("keys differ:\n%s\n%s", a.NaturalKey(), b.NaturalKey())
	}

	c := a
	c.Amount = Money{Cents: -1251}
	if a.NaturalKey() == c.NaturalKey() {
		t.Fatalf("different amounts should produce different keys")
	}
}

func TestDisplayCategory(t *testing.T) {
	tx := Transaction{}
	if got := tx.DisplayCategory(); got != Uncategorized {
		t.Fatalf("expected %q, got %q", Uncategorized, got)
	}
	tx.Category = "Dining"
	if got := tx.DisplayCategory(); got != "Dining" {
		t.Fatalf("expected Dining, got %q", got)
	}
	if !tx.IsClassified() {
		t.Fatalf("expected classified")
	}
}
