package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/netzema/fintrack/internal/core"
)

// header names seen in localized bank exports, lowercased
var headerAliases = map[string]string{
	"buchungstag":                       "date",
	"buchungsdatum":                     "date",
	"datum":                             "date",
	"date":                              "date",
	"booking date":                      "date",
	"betrag":                            "amount",
	"umsatz":                            "amount",
	"amount":                            "amount",
	"name zahlungsbeteiligter":          "counterparty",
	"beguenstigter/zahlungspflichtiger": "counterparty",
	"auftraggeber/empfaenger":           "counterparty",
	"counterparty":                      "counterparty",
	"name":                              "counterparty",
	"verwendungszweck":                  "remittance",
	"buchungstext":                      "remittance",
	"remittance":                        "remittance",
	"description":                       "remittance",
	"iban zahlungsbeteiligter":          "iban",
	"iban":                              "iban",
	"waehrung":                          "currency",
	"währung":                           "currency",
	"currency":                          "currency",
}

// ImportOptions tunes a CSV import run.
type ImportOptions struct {
	// Category assigned to every imported row, e.g. the Transfer category
	// for a savings account export. Empty leaves rows unclassified.
	Category string
	// Rows whose counterparty IBAN or name matches an entry are skipped.
	IgnoreIBANs          []string
	IgnoreCounterparties []string
}

// ImportStats reports what a CSV import did.
type ImportStats struct {
	Rows     int
	Imported int
	Skipped  int
}

type CSVImporter struct {
	store  Store
	logger *slog.Logger
}

func NewCSVImporter(store Store, logger *slog.Logger) *CSVImporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVImporter{store: store, logger: logger}
}

// Import reads a bank CSV export and stores its rows. The header row is
// mapped case-insensitively through known localized column names, amounts may
// use either decimal convention, and rows without a date or amount are
// skipped rather than failing the run. Imported rows get generated ids; the
// natural key still dedupes re-imports of the same file.
func (im *CSVImporter) Import(ctx context.Context, r io.Reader, opts ImportOptions) (ImportStats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportStats{}, fmt.Errorf("read csv: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = detectDelimiter(string(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return ImportStats{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := mapHeader(header)
	if _, ok := cols["date"]; !ok {
		return ImportStats{}, fmt.Errorf("csv header has no date column")
	}
	if _, ok := cols["amount"]; !ok {
		return ImportStats{}, fmt.Errorf("csv header has no amount column")
	}

	ignoreIBANs := lowerSet(opts.IgnoreIBANs)
	ignoreParties := lowerSet(opts.IgnoreCounterparties)

	// semicolon-delimited exports are EU-formatted throughout, so a bare
	// "1.234" there means 1234 euros, not one euro
	parseAmount := core.ParseAmount
	if reader.Comma == ';' {
		parseAmount = core.ParseAmountEU
	}

	var stats ImportStats
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read csv row: %w", err)
		}
		stats.Rows++

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		rawDate, rawAmount := field("date"), field("amount")
		if rawDate == "" || rawAmount == "" {
			stats.Skipped++
			continue
		}
		date, err := core.ParseDate(rawDate)
		if err != nil {
			stats.Skipped++
			im.logger.WarnContext(ctx, "Skipping row with unparseable date", "value", rawDate)
			continue
		}
		amount, err := parseAmount(rawAmount)
		if err != nil {
			stats.Skipped++
			im.logger.WarnContext(ctx, "Skipping row with unparseable amount", "value", rawAmount)
			continue
		}

		if ignoreIBANs[strings.ToLower(field("iban"))] ||
			ignoreParties[strings.ToLower(field("counterparty"))] {
			stats.Skipped++
			continue
		}

		currency := field("currency")
		if currency == "" {
			currency = "EUR"
		}

		tx := core.Transaction{
			ID:           uuid.NewString(),
			BookingDate:  date,
			Amount:       amount,
			Currency:     currency,
			Counterparty: field("counterparty"),
			Remittance:   field("remittance"),
			Category:     opts.Category,
			Source:       core.SourceCSV,
		}
		inserted, err := im.store.Insert(ctx, tx)
		if err != nil {
			return stats, fmt.Errorf("store row %d: %w", stats.Rows, err)
		}
		if inserted {
			stats.Imported++
		}
	}

	im.logger.InfoContext(ctx, "Import finished",
		"rows", stats.Rows, "imported", stats.Imported, "skipped", stats.Skipped)
	return stats, nil
}

func mapHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := headerAliases[name]; ok {
			if _, taken := cols[canonical]; !taken {
				cols[canonical] = i
			}
		}
	}
	return cols
}

func detectDelimiter(data string) rune {
	line := data
	if i := strings.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = true
		}
	}
	return set
}
