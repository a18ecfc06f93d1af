package dashboard

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Fixed colors of the income vs expenses chart.
const (
	IncomeColor  = "#10B981"
	ExpenseColor = "#EF4444"
)

// Card is one headline figure. Count cards leave Amount zero.
type Card struct {
	Label  string
	Amount decimal.Decimal
	Count  int
}

// Slice is one pie segment with its whole-number percentage label.
type Slice struct {
	Name    string
	Value   decimal.Decimal
	Color   string
	Percent int
}

// DashboardData is the chart-ready shape of a ledger summary.
type DashboardData struct {
	Cards            []Card
	ExpenseSlices    []Slice
	IncomeSlices     []Slice
	IncomeVsExpenses []Slice
}

// ShapeDashboard passes the server totals through unchanged and groups the
// category breakdown into pie slices. Only positive totals are charted.
func ShapeDashboard(s core.Summary) DashboardData {
	d := DashboardData{
		Cards: []Card{
			{Label: "Total Income", Amount: s.Income},
			{Label: "Total Expenses", Amount: s.Expenses},
			{Label: "Net", Amount: s.Net},
			{Label: "Transactions", Count: s.Count},
		},
	}

	var expenses, income []Slice
	for _, c := range s.ByCategory {
		if !c.Total.IsPositive() {
			continue
		}
		sl := Slice{Name: c.Name, Value: c.Total, Color: c.Color}
		switch c.CategoryType {
		case core.Expense:
			expenses = append(expenses, sl)
		case core.Income:
			income = append(income, sl)
		}
	}
	d.ExpenseSlices = withPercents(expenses)
	d.IncomeSlices = withPercents(income)

	var pair []Slice
	if s.Income.IsPositive() {
		pair = append(pair, Slice{Name: "Income", Value: s.Income, Color: IncomeColor})
	}
	if s.Expenses.IsPositive() {
		pair = append(pair, Slice{Name: "Expenses", Value: s.Expenses, Color: ExpenseColor})
	}
	d.IncomeVsExpenses = withPercents(pair)
	return d
}

// withPercents labels each slice with its share of the pie rounded to a
// whole percent.
func withPercents(slices []Slice) []Slice {
	total := decimal.Zero
	for _, sl := range slices {
		total = total.Add(sl.Value)
	}
	if total.IsZero() {
		return slices
	}
	hundred := decimal.NewFromInt(100)
	for i := range slices {
		slices[i].Percent = int(slices[i].Value.Mul(hundred).Div(total).Round(0).IntPart())
	}
	return slices
}
