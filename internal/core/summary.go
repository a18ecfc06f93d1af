package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryTotal aggregates the transactions of one category.
type CategoryTotal struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Icon         string          `json:"icon"`
	Color        string          `json:"color"`
	CategoryType TxType          `json:"category_type"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
}

// Summary is the ledger aggregate for a date range.
type Summary struct {
	Income     decimal.Decimal `json:"income"`
	Expenses   decimal.Decimal `json:"expenses"`
	Net        decimal.Decimal `json:"net"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"byCategory"`
}

// Summarize computes a Summary from transactions already filtered to a range.
// Uncategorized transactions count towards the totals only.
func Summarize(txs []Transaction, categories []Category) Summary {
	s := Summary{Income: decimal.Zero, Expenses: decimal.Zero, ByCategory: []CategoryTotal{}}
	byID := make(map[int64]*CategoryTotal)
	var order []int64
	catByID := make(map[int64]Category, len(categories))
	for _, c := range categories {
		catByID[c.ID] = c
	}

	for _, tx := range txs {
		s.Count++
		switch tx.Type {
		case Income:
			s.Income = s.Income.Add(tx.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(tx.Amount)
		}
		if tx.CategoryID == nil {
			continue
		}
		ct, ok := byID[*tx.CategoryID]
		if !ok {
			c := catByID[*tx.CategoryID]
			ct = &CategoryTotal{ID: *tx.CategoryID, Name: c.Name, Icon: c.Icon, Color: c.Color, CategoryType: c.Type, Total: decimal.Zero}
			byID[*tx.CategoryID] = ct
			order = append(order, *tx.CategoryID)
		}
		ct.Total = ct.Total.Add(tx.Amount)
		ct.Count++
	}
	s.Net = s.Income.Sub(s.Expenses)

	for _, id := range order {
		if byID[id].Total.IsPositive() {
			s.ByCategory = append(s.ByCategory, *byID[id])
		}
	}
	SortCategoryTotals(s.ByCategory)
	return s
}

// SortCategoryTotals orders by total descending, then by name.
func SortCategoryTotals(totals []CategoryTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		return totals[i].Name < totals[j].Name
	})
}
