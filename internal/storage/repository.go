// Package storage persists transactions in a local SQLite database and
// serves the aggregate queries the dashboard renders. Single writer,
// concurrent readers; the schema lives in embedded migrations.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/netzema/fintrack/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const txColumns = `id, booking_date, value_date, amount_cents, currency, counterparty, remittance, category, source`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx        core.Transaction
		booking   string
		valueDate sql.NullString
		category  sql.NullString
		source    string
	)
	err := row.Scan(&tx.ID, &booking, &valueDate, &tx.Amount.Cents, &tx.Currency,
		&tx.Counterparty, &tx.Remittance, &category, &source)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.BookingDate, err = core.ParseDate(booking); err != nil {
		return core.Transaction{}, fmt.Errorf("stored booking date: %w", err)
	}
	if valueDate.Valid && valueDate.String != "" {
		if tx.ValueDate, err = core.ParseDate(valueDate.String); err != nil {
			return core.Transaction{}, fmt.Errorf("stored value date: %w", err)
		}
	}
	tx.Category = category.String
	tx.Source = core.Source(source)
	return tx, nil
}

// Insert stores a transaction unless one with the same natural key already
// exists. It reports whether a row was actually inserted, which makes
// repeated downloads of the same feed idempotent.
func (r *SQLiteRepository) Insert(ctx context.Context, tx core.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}
	var valueDate, category any
	if !tx.ValueDate.IsZero() {
		valueDate = tx.ValueDate.ISO()
	}
	if tx.Category != "" {
		category = tx.Category
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions
			(id, booking_date, value_date, amount_cents, currency, counterparty, remittance, category, source, natural_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.BookingDate.ISO(), valueDate, tx.Amount.Cents, tx.Currency,
		tx.Counterparty, tx.Remittance, category, string(tx.Source), tx.NaturalKey(),
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Get returns a transaction by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// SetCategory assigns a category to a transaction.
func (r *SQLiteRepository) SetCategory(ctx context.Context, id, category string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE id = ?`, category, id)
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set category: no transaction with id %s", id)
	}
	slog.DebugContext(ctx, "Category assigned", "id", id, "category", category)
	return nil
}

// ListUnclassified returns transactions without a category, oldest first.
// limit <= 0 means no limit.
func (r *SQLiteRepository) ListUnclassified(ctx context.Context, limit int) ([]core.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions WHERE category IS NULL ORDER BY booking_date, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryTransactions(ctx, q, args...)
}

// NextUnclassified returns the oldest unclassified transaction, or nil when
// the labeler queue is empty.
func (r *SQLiteRepository) NextUnclassified(ctx context.Context) (*core.Transaction, error) {
	txs, err := r.ListUnclassified(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// CountUnclassified returns the size of the labeler queue.
func (r *SQLiteRepository) CountUnclassified(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE category IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unclassified: %w", err)
	}
	return n, nil
}

// ListAll returns every transaction, oldest first. Used by forced
// reclassification.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions ORDER BY booking_date, id`)
}

// TxFilter narrows ListTransactions. Category may be core.Uncategorized to
// select rows without a category.
type TxFilter struct {
	YearMonth string // YYYY-MM, "" = all
	Category  string // "" = all
	Limit     int    // <= 0 means 200
}

// ListTransactions returns transactions for the dashboard table, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TxFilter) ([]core.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if f.YearMonth != "" {
		q += ` AND substr(booking_date, 1, 7) = ?`
		args = append(args, f.YearMonth)
	}
	switch f.Category {
	case "":
	case core.Uncategorized:
		q += ` AND category IS NULL`
	default:
		q += ` AND category = ?`
		args = append(args, f.Category)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	q += ` ORDER BY booking_date DESC, id LIMIT ?`
	args = append(args, limit)
	return r.queryTransactions(ctx, q, args...)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Categories returns the distinct assigned categories, sorted.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM transactions WHERE category IS NOT NULL AND category != '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Counterparties returns distinct counterparty names, most recently seen
// first, for the manual-entry suggestions.
func (r *SQLiteRepository) Counterparties(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT counterparty FROM transactions
		WHERE counterparty != ''
		GROUP BY counterparty
		ORDER BY MAX(booking_date) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list counterparties: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan counterparty: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Months returns the distinct months with data, newest first, capped at 24
// so the dashboard selector stays short.
func (r *SQLiteRepository) Months(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT substr(booking_date, 1, 7) FROM transactions ORDER BY 1 DESC LIMIT 24`)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MonthlyFlows returns income and expense totals per month, transfers
// excluded, oldest first.
func (r *SQLiteRepository) MonthlyFlows(ctx context.Context) ([]core.MonthFlow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(booking_date, 1, 7) AS ym,
		       SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END),
		       SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END)
		FROM transactions
		WHERE IFNULL(category, '') != ?
		GROUP BY ym
		ORDER BY ym`, core.CategoryTransfer)
	if err != nil {
		return nil, fmt.Errorf("monthly flows: %w", err)
	}
	defer rows.Close()

	var out []core.MonthFlow
	for rows.Next() {
		var f core.MonthFlow
		if err := rows.Scan(&f.YearMonth, &f.Income.Cents, &f.Expenses.Cents); err != nil {
			return nil, fmt.Errorf("scan month flow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CategorySums returns absolute expense totals per category, largest first.
// yearMonth narrows to one month; "" means all time. Unclassified rows show
// up as the Uncategorized bucket rather than being dropped.
func (r *SQLiteRepository) CategorySums(ctx context.Context, yearMonth string, limit int) ([]core.CategoryAmount, error) {
	q := `
		SELECT IFNULL(NULLIF(category, ''), ?) AS cat, SUM(-amount_cents) AS total
		FROM transactions
		WHERE amount_cents < 0 AND IFNULL(category, '') != ?`
	args := []any{core.Uncategorized, core.CategoryTransfer}
	if yearMonth != "" {
		q += ` AND substr(booking_date, 1, 7) = ?`
		args = append(args, yearMonth)
	}
	q += ` GROUP BY cat ORDER BY total DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("category sums: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// CumulativeSpend returns the running absolute expense total per booking day
// within a month, transfers excluded.
func (r *SQLiteRepository) CumulativeSpend(ctx context.Context, yearMonth string) ([]core.DayPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT booking_date, SUM(-amount_cents)
		FROM transactions
		WHERE amount_cents < 0 AND IFNULL(category, '') != ? AND substr(booking_date, 1, 7) = ?
		GROUP BY booking_date
		ORDER BY booking_date`, core.CategoryTransfer, yearMonth)
	if err != nil {
		return nil, fmt.Errorf("cumulative spend: %w", err)
	}
	defer rows.Close()

	var (
		out     []core.DayPoint
		running int64
	)
	for rows.Next() {
		var (
			day   string
			cents int64
		)
		if err := rows.Scan(&day, &cents); err != nil {
			return nil, fmt.Errorf("scan day spend: %w", err)
		}
		d, err := core.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("stored booking date: %w", err)
		}
		running += cents
		out = append(out, core.DayPoint{Date: d, Cumulative: core.Money{Cents: running}})
	}
	return out, rows.Err()
}

// Summary computes the dashboard headline numbers across all data.
func (r *SQLiteRepository) Summary(ctx context.Context) (core.Summary, error) {
	var s core.Summary

	err := r.db.QueryRowContext(ctx, `
		SELECT IFNULL(SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END), 0),
		       IFNULL(SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END), 0)
		FROM transactions
		WHERE IFNULL(category, '') != ?`, core.CategoryTransfer).
		Scan(&s.TotalIncome.Cents, &s.TotalExpenses.Cents)
	if err != nil {
		return s, fmt.Errorf("summary totals: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT IFNULL(SUM(ABS(amount_cents)), 0) FROM transactions WHERE category = ?`,
		core.CategoryTransfer).Scan(&s.TotalSavings.Cents)
	if err != nil {
		return s, fmt.Errorf("summary savings: %w", err)
	}
	if s.TotalIncome.Cents > 0 {
		s.SavingsRate = float64(s.TotalSavings.Cents) / float64(s.TotalIncome.Cents) * 100
	}

	flows, err := r.MonthlyFlows(ctx)
	if err != nil {
		return s, err
	}
	if len(flows) > 0 {
		var income, expenses int64
		for _, f := range flows {
			income += f.Income.Cents
			expenses += f.Expenses.Cents
		}
		n := int64(len(flows))
		s.MonthlyAvgIncome = core.Money{Cents: income / n}
		s.MonthlyAvgExpense = core.Money{Cents: expenses / n}
	}

	if s.Unclassified, err = r.CountUnclassified(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// ListUnexported returns classified transactions that have not been mirrored
// to the spreadsheet yet, oldest first.
func (r *SQLiteRepository) ListUnexported(ctx context.Context, limit int) ([]core.Transaction, error) {
	q := `
		SELECT ` + txColumns + ` FROM transactions t
		WHERE t.category IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM sheet_exports e WHERE e.transaction_id = t.id)
		ORDER BY t.booking_date, t.id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryTransactions(ctx, q, args...)
}

// MarkExported records a successful spreadsheet append so the export worker
// stays idempotent.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sheet_exports (transaction_id) VALUES (?)`, id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}
