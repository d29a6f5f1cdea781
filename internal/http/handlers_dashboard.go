package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/netzema/fintrack/internal/core"
	"github.com/netzema/fintrack/internal/storage"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	months, err := s.store.Months(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Month list error", "error", err)
	}
	unclassified, err := s.store.CountUnclassified(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Unclassified count error", "error", err)
	}

	data := struct {
		Months       []string
		Selected     string
		Unclassified int
	}{
		Months:       months,
		Selected:     parseYearMonth(r),
		Unclassified: unclassified,
	}
	s.render(w, r, "index.html", data)
}

func (s *Server) getSummary(ctx context.Context) (core.Summary, error) {
	if cached, found := s.summaryCache.Get("summary"); found {
		return cached, nil
	}
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	s.summaryCache.Set("summary", summary)
	return summary, nil
}

func (s *Server) getMonthFlows(ctx context.Context) ([]core.MonthFlow, error) {
	if cached, found := s.flowsCache.Get("flows"); found {
		return append([]core.MonthFlow(nil), cached...), nil
	}
	flows, err := s.store.MonthlyFlows(ctx)
	if err != nil {
		return nil, err
	}
	// cache a private copy so callers sorting the result leave it untouched
	s.flowsCache.Set("flows", append([]core.MonthFlow(nil), flows...))
	return flows, nil
}

// invalidateDashboard drops cached aggregates after a label change.
func (s *Server) invalidateDashboard() {
	s.summaryCache.Delete("summary")
	s.flowsCache.Delete("flows")
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	summary, err := s.getSummary(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err)
		_, _ = w.Write([]byte(`<section id="summary"><div class="placeholder">Failed to load summary</div></section>`))
		return
	}

	data := struct {
		TotalIncome       string
		TotalExpenses     string
		TotalSavings      string
		SavingsRate       string
		MonthlyAvgIncome  string
		MonthlyAvgExpense string
		Unclassified      int
	}{
		TotalIncome:       formatEuros(summary.TotalIncome.Cents),
		TotalExpenses:     formatEuros(summary.TotalExpenses.Cents),
		TotalSavings:      formatEuros(summary.TotalSavings.Cents),
		SavingsRate:       formatPercent(summary.SavingsRate),
		MonthlyAvgIncome:  formatEuros(summary.MonthlyAvgIncome.Cents),
		MonthlyAvgExpense: formatEuros(summary.MonthlyAvgExpense.Cents),
		Unclassified:      summary.Unclassified,
	}
	s.render(w, r, "summary.html", data)
}

type barRow struct {
	Label  string
	Amount string
	Width  int
}

// barWidth scales cents to a rounded percent of max, keeping tiny values visible.
func barWidth(cents, maxCents int64) int {
	if maxCents <= 0 || cents <= 0 {
		return 0
	}
	width := int((cents*100 + maxCents/2) / maxCents)
	if width > 0 && width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

func (s *Server) handleMonthFlows(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	flows, err := s.getMonthFlows(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Monthly flows error", "error", err)
		_, _ = w.Write([]byte(`<section id="month-flows"><div class="placeholder">Failed to load monthly flows</div></section>`))
		return
	}

	// show the most recent months first
	sort.Slice(flows, func(i, j int) bool { return flows[i].YearMonth > flows[j].YearMonth })
	if len(flows) > 12 {
		flows = flows[:12]
	}

	var maxCents int64
	for _, f := range flows {
		if f.Income.Cents > maxCents {
			maxCents = f.Income.Cents
		}
		if f.Expenses.Cents > maxCents {
			maxCents = f.Expenses.Cents
		}
	}

	type flowRow struct {
		YearMonth     string
		Income        string
		Expenses      string
		IncomeWidth   int
		ExpensesWidth int
	}
	data := struct{ Rows []flowRow }{}
	for _, f := range flows {
		data.Rows = append(data.Rows, flowRow{
			YearMonth:     f.YearMonth,
			Income:        formatEuros(f.Income.Cents),
			Expenses:      formatEuros(f.Expenses.Cents),
			IncomeWidth:   barWidth(f.Income.Cents, maxCents),
			ExpensesWidth: barWidth(f.Expenses.Cents, maxCents),
		})
	}
	s.render(w, r, "month_flows.html", data)
}

func (s *Server) handleCategorySums(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	ctx := r.Context()

	yearMonth := ""
	if r.URL.Query().Get("scope") != "all" {
		yearMonth = parseYearMonth(r)
	}

	sums, err := s.store.CategorySums(ctx, yearMonth, 12)
	if err != nil {
		slog.ErrorContext(ctx, "Category sums error", "error", err, "month", yearMonth)
		_, _ = w.Write([]byte(`<section id="categories"><div class="placeholder">Failed to load categories</div></section>`))
		return
	}

	var maxCents int64
	for _, ca := range sums {
		if ca.Amount.Cents > maxCents {
			maxCents = ca.Amount.Cents
		}
	}

	data := struct {
		Month string
		Rows  []barRow
	}{Month: yearMonth}
	for _, ca := range sums {
		data.Rows = append(data.Rows, barRow{
			Label:  ca.Name,
			Amount: formatEuros(ca.Amount.Cents),
			Width:  barWidth(ca.Amount.Cents, maxCents),
		})
	}
	s.render(w, r, "category_sums.html", data)
}

func (s *Server) handleCumulative(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	ctx := r.Context()
	yearMonth := parseYearMonth(r)

	points, err := s.store.CumulativeSpend(ctx, yearMonth)
	if err != nil {
		slog.ErrorContext(ctx, "Cumulative spend error", "error", err, "month", yearMonth)
		_, _ = w.Write([]byte(`<section id="cumulative"><div class="placeholder">Failed to load spending curve</div></section>`))
		return
	}

	var maxCents int64
	if len(points) > 0 {
		maxCents = points[len(points)-1].Cumulative.Cents
	}

	type dayRow struct {
		Day   string
		Total string
		Width int
	}
	data := struct {
		Month string
		Rows  []dayRow
	}{Month: yearMonth}
	for _, p := range points {
		data.Rows = append(data.Rows, dayRow{
			Day:   p.Date.Format("02"),
			Total: formatEuros(p.Cumulative.Cents),
			Width: barWidth(p.Cumulative.Cents, maxCents),
		})
	}
	s.render(w, r, "cumulative.html", data)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	ctx := r.Context()
	yearMonth := parseYearMonth(r)

	data := struct {
		Month string
		Rows  []core.BudgetLine
	}{Month: yearMonth}

	if len(s.budgets) == 0 {
		s.render(w, r, "budgets.html", data)
		return
	}

	sums, err := s.store.CategorySums(ctx, yearMonth, 0)
	if err != nil {
		slog.ErrorContext(ctx, "Budget sums error", "error", err, "month", yearMonth)
		_, _ = w.Write([]byte(`<section id="budgets"><div class="placeholder">Failed to load budgets</div></section>`))
		return
	}
	spent := make(map[string]int64, len(sums))
	for _, ca := range sums {
		spent[ca.Name] = ca.Amount.Cents
	}

	names := make([]string, 0, len(s.budgets))
	for name := range s.budgets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data.Rows = append(data.Rows, core.BudgetLine{
			Category: name,
			Budget:   core.Money{Cents: s.budgets[name]},
			Spent:    core.Money{Cents: spent[name]},
		})
	}
	s.render(w, r, "budgets.html", data)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	ctx := r.Context()

	filter := storage.TxFilter{Category: sanitizeInput(r.URL.Query().Get("category"))}
	if r.URL.Query().Get("scope") != "all" {
		filter.YearMonth = parseYearMonth(r)
	}

	txs, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, "Transaction list error", "error", err)
		_, _ = w.Write([]byte(`<section id="transactions"><div class="placeholder">Failed to load transactions</div></section>`))
		return
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Category list error", "error", err)
	}

	type txRow struct {
		Date         string
		Counterparty string
		Remittance   string
		Amount       string
		Negative     bool
		Category     string
	}
	data := struct {
		Month      string
		Category   string
		Categories []string
		Rows       []txRow
	}{Month: filter.YearMonth, Category: filter.Category, Categories: categories}
	for _, tx := range txs {
		data.Rows = append(data.Rows, txRow{
			Date:         tx.BookingDate.ISO(),
			Counterparty: tx.Counterparty,
			Remittance:   tx.Remittance,
			Amount:       formatEuros(tx.Amount.Cents),
			Negative:     tx.Amount.Cents < 0,
			Category:     tx.DisplayCategory(),
		})
	}
	s.render(w, r, "transactions.html", data)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
