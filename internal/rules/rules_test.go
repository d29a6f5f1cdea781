package rules

import (
	"errors"
	"testing"

	"github.com/netzema/fintrack/internal/core"
)

func coffeeTxn() core.Transaction {
	return core.Transaction{
		ID:           "tx-coffee",
		BookingDate:  core.NewDate(2024, 1, 5),
		Amount:       core.Money{Cents: -1250},
		Counterparty: "COFFEE SHOP X",
		Remittance:   "POS COFFEE SHOP X 0105",
		Source:       core.SourceAPI,
	}
}

func TestRuleMatches(t *testing.T) {
	tx := coffeeTxn()
	cases := []struct {
		name string
		rule Rule
		want bool
	}{
		{"substring remittance", Rule{Match: "COFFEE SHOP X", Field: FieldRemittance, Category: "Dining"}, true},
		{"substring case-insensitive", Rule{Match: "coffee shop", Field: FieldRemittance, Category: "Dining"}, true},
		{"substring counterparty", Rule{Match: "coffee", Field: FieldCounterparty, Category: "Dining"}, true},
		{"substring miss", Rule{Match: "SUPERMARKET", Field: FieldRemittance, Category: "Groceries"}, false},
		{"exact id", Rule{Match: "tx-coffee", Field: FieldID, Category: "Dining"}, true},
		{"exact id miss", Rule{Match: "tx-other", Field: FieldID, Category: "Dining"}, false},
		{"regex", Rule{Match: `^POS COFFEE`, Field: FieldRemittance, Kind: KindRegex, Category: "Dining"}, true},
		{"regex miss", Rule{Match: `^ATM`, Field: FieldRemittance, Kind: KindRegex, Category: "Cash"}, false},
		{"amount less-than", Rule{Match: "< -10", Field: FieldAmount, Category: "Big"}, true},
		{"amount greater-than", Rule{Match: "> 0", Field: FieldAmount, Category: "Income"}, false},
		{"amount equal", Rule{Match: "== -12.50", Field: FieldAmount, Category: "Exact"}, true},
		{"amount not-equal", Rule{Match: "!= -12.50", Field: FieldAmount, Category: "Other"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.rule.Validate(); err != nil {
				t.Fatalf("rule invalid: %v", err)
			}
			if got := tc.rule.Matches(tx); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	bads := []Rule{
		{Match: "", Field: FieldRemittance, Category: "X"},
		{Match: "a", Field: FieldRemittance, Category: ""},
		{Match: "a", Field: "payee", Category: "X"},
		{Match: "a", Field: FieldRemittance, Kind: "glob", Category: "X"},
		{Match: "(unclosed", Field: FieldRemittance, Kind: KindRegex, Category: "X"},
		{Match: ">> 5", Field: FieldAmount, Category: "X"},
		{Match: "> 5", Field: FieldRemittance, Kind: KindAmount, Category: "X"},
		{Match: "-12.50", Field: FieldAmount, Kind: KindExact, Category: "X"},
		{Match: "12", Field: FieldAmount, Kind: KindSubstring, Category: "X"},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	base, err := New([]Rule{
		{Match: "COFFEE", Field: FieldRemittance, Category: "Dining"},
		{Match: "COFFEE SHOP X", Field: FieldRemittance, Category: "Coffee"},
	})
	if err != nil {
		t.Fatalf("new base: %v", err)
	}

	// Both rules match; the earlier one must win, on every run.
	for i := 0; i < 10; i++ {
		got, ok := base.Classify(coffeeTxn())
		if !ok || got != "Dining" {
			t.Fatalf("run %d: expected Dining, got %q (ok=%v)", i, got, ok)
		}
	}
}

func TestClassifyNoMatch(t *testing.T) {
	base, err := New([]Rule{
		{Match: "SUPERMARKET", Field: FieldRemittance, Category: "Groceries"},
	})
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	if got, ok := base.Classify(coffeeTxn()); ok {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestAppendRejectsDuplicatePattern(t *testing.T) {
	base, err := New([]Rule{
		{Match: "COFFEE SHOP X", Field: FieldRemittance, Category: "Dining"},
	})
	if err != nil {
		t.Fatalf("new base: %v", err)
	}

	err = base.Append(Rule{Match: "coffee shop x", Field: FieldRemittance, Category: "Coffee"})
	if !errors.Is(err, ErrDuplicatePattern) {
		t.Fatalf("expected ErrDuplicatePattern, got %v", err)
	}

	// Same pattern on a different field is a different rule.
	if err := base.Append(Rule{Match: "coffee shop x", Field: FieldCounterparty, Category: "Coffee"}); err != nil {
		t.Fatalf("append on other field: %v", err)
	}
	if base.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", base.Len())
	}
}

func TestAppendKeepsLowestPriority(t *testing.T) {
	base, err := New([]Rule{
		{Match: "COFFEE", Field: FieldRemittance, Category: "Dining"},
	})
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	if err := base.Append(DeriveSubstring("COFFEE SHOP X", "Coffee")); err != nil {
		t.Fatalf("append: %v", err)
	}

	// The appended rule must not override the earlier one.
	got, ok := base.Classify(coffeeTxn())
	if !ok || got != "Dining" {
		t.Fatalf("expected Dining, got %q (ok=%v)", got, ok)
	}
}

func TestDeriveUnique(t *testing.T) {
	r := DeriveUnique("tx-coffee", "Dining")
	if err := r.Validate(); err != nil {
		t.Fatalf("derived rule invalid: %v", err)
	}
	if !r.Matches(coffeeTxn()) {
		t.Fatalf("unique rule should match its transaction")
	}
	other := coffeeTxn()
	other.ID = "tx-other"
	if r.Matches(other) {
		t.Fatalf("unique rule must not match other transactions")
	}
	if r.Origin != OriginDerived {
		t.Fatalf("expected derived origin, got %q", r.Origin)
	}
}

func TestCategories(t *testing.T) {
	base, err := New([]Rule{
		{Match: "a", Field: FieldRemittance, Category: "Dining"},
		{Match: "b", Field: FieldRemittance, Category: "Groceries"},
		{Match: "c", Field: FieldRemittance, Category: "Dining"},
	})
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	got := base.Categories()
	if len(got) != 2 || got[0] != "Dining" || got[1] != "Groceries" {
		t.Fatalf("unexpected categories: %v", got)
	}
}
