package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transaction sources.
const (
	SourceAPI    Source = "api"
	SourceCSV    Source = "csv"
	SourceManual Source = "manual"
)

// CategoryTransfer marks transfers to the savings account. The dashboard
// excludes it from income/expense totals and counts it as savings.
const CategoryTransfer = "Transfer"

// Uncategorized is the display bucket for transactions without a category.
// It is never persisted; an unclassified transaction stores the empty string.
const Uncategorized = "Uncategorized"

type (
	Source string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64 // signed; negative for outflows
	}

	Transaction struct {
		ID           string // provider transaction id, or a generated UUID
		BookingDate  Date
		ValueDate    Date // optional
		Amount       Money
		Currency     string
		Counterparty string
		Remittance   string // raw description
		Category     string // "" = unclassified
		Source       Source
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyID       = errors.New("empty transaction id")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidSource = errors.New("invalid transaction source")
	ErrTooLongField  = errors.New("field too long (max 500 characters)")
)

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the date formats seen in bank exports:
// ISO (2006-01-02), German (02.01.2006) and slashed (02/01/2006).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range []string{"2006-01-02", "02.01.2006", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ISO returns the date formatted as YYYY-MM-DD, the storage format.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// YearMonth returns the date formatted as YYYY-MM.
func (d Date) YearMonth() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01")
}

func (s Source) Validate() error {
	switch s {
	case SourceAPI, SourceCSV, SourceManual:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSource, string(s))
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.BookingDate.IsZero() {
		return ErrInvalidDate
	}
	if err := t.Source.Validate(); err != nil {
		return err
	}
	if len(t.Counterparty) > 500 || len(t.Remittance) > 500 {
		return ErrTooLongField
	}
	return nil
}

// NaturalKey returns the dedupe key (date, amount, counterparty, description).
// Repeated downloads of the same feed map to identical keys, so inserting by
// natural key is idempotent. Text fields are trimmed and lowercased because
// some exports vary whitespace and casing between runs.
func (t Transaction) NaturalKey() string {
	return fmt.Sprintf("%s|%d|%s|%s",
		t.BookingDate.ISO(),
		t.Amount.Cents,
		normalizeKeyField(t.Counterparty),
		normalizeKeyField(t.Remittance),
	)
}

func normalizeKeyField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// DisplayCategory maps the empty category to the Uncategorized bucket.
func (t Transaction) DisplayCategory() string {
	if t.Category == "" {
		return Uncategorized
	}
	return t.Category
}

// IsClassified reports whether the transaction carries a category.
func (t Transaction) IsClassified() bool {
	return t.Category != ""
}
