package core

// CategoryAmount is an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthFlow is income and expenses aggregated for one calendar month.
type MonthFlow struct {
	YearMonth string // YYYY-MM
	Income    Money
	Expenses  Money // absolute value
}

// DayPoint is one point of the cumulative spend series within a month.
type DayPoint struct {
	Date       Date
	Cumulative Money // running absolute expense total
}

// BudgetLine compares a configured monthly budget against actual spend.
type BudgetLine struct {
	Category string
	Budget   Money
	Spent    Money
}

// Over reports whether the spend exceeds the budget.
func (b BudgetLine) Over() bool {
	return b.Budget.Cents > 0 && b.Spent.Cents > b.Budget.Cents
}

// Percent returns the spent share of the budget as a whole percentage.
func (b BudgetLine) Percent() int {
	if b.Budget.Cents <= 0 {
		return 0
	}
	return int(b.Spent.Cents * 100 / b.Budget.Cents)
}

// Summary holds the headline numbers the dashboard renders as cards.
// Transfers are excluded from income and expenses and counted as savings.
type Summary struct {
	TotalIncome       Money
	TotalExpenses     Money // absolute value
	TotalSavings      Money // absolute value of Transfer category
	SavingsRate       float64
	MonthlyAvgIncome  Money
	MonthlyAvgExpense Money // absolute value
	Unclassified      int   // transactions pending in the labeler queue
}
