package finctl

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/dashboard"
	"fintrack/internal/format"
	"fintrack/internal/invest"
)

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return "-"
	}
	return s
}

func categoryLabel(icon, name string) string {
	if name == "" {
		return ""
	}
	if icon == "" {
		return name
	}
	return icon + " " + name
}

func transactionsMarkdown(txs []core.Transaction, dr core.DateRange, filter dashboard.TypeFilter, cur *format.Currency) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transactions\n\n%s", format.Range(dr))
	if filter != dashboard.FilterAll {
		fmt.Fprintf(&b, ", %s only", filter)
	}
	b.WriteString("\n\n")
	if len(txs) == 0 {
		b.WriteString("No transactions in this range.\n")
		return b.String()
	}
	b.WriteString("| ID | Date | Category | Description | Vendor | Amount |\n")
	b.WriteString("|---:|---|---|---|---|---:|\n")
	for _, tx := range txs {
		amount := tx.Amount
		if tx.Type == core.Expense {
			amount = amount.Neg()
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			tx.ID,
			format.Date(tx.Date),
			cell(categoryLabel(tx.CategoryIcon, tx.CategoryName)),
			cell(tx.Description),
			cell(tx.Vendor),
			cur.Signed(amount))
	}
	return b.String()
}

func summaryMarkdown(s core.Summary, dr core.DateRange, cur *format.Currency) string {
	d := dashboard.ShapeDashboard(s)
	var b strings.Builder
	fmt.Fprintf(&b, "# Dashboard\n\n%s\n\n", format.Range(dr))
	b.WriteString("| | |\n|---|---:|\n")
	for _, c := range d.Cards {
		var value string
		switch c.Label {
		case "Transactions":
			value = fmt.Sprint(c.Count)
		case "Net":
			value = cur.Signed(c.Amount)
		default:
			value = cur.Format(c.Amount)
		}
		fmt.Fprintf(&b, "| %s | %s |\n", c.Label, value)
	}
	writeSlices(&b, "Expenses by category", d.ExpenseSlices, cur)
	writeSlices(&b, "Income by category", d.IncomeSlices, cur)
	writeSlices(&b, "Income vs expenses", d.IncomeVsExpenses, cur)
	return b.String()
}

func writeSlices(b *strings.Builder, title string, slices []dashboard.Slice, cur *format.Currency) {
	fmt.Fprintf(b, "\n## %s\n\n", title)
	if len(slices) == 0 {
		b.WriteString("Nothing to chart.\n")
		return
	}
	b.WriteString("| | Amount | Share |\n|---|---:|---:|\n")
	for _, sl := range slices {
		fmt.Fprintf(b, "| %s | %s | %d%% |\n", cell(sl.Name), cur.Format(sl.Value), sl.Percent)
	}
}

func categoriesMarkdown(cats []core.Category) string {
	var b strings.Builder
	b.WriteString("# Categories\n\n")
	if len(cats) == 0 {
		b.WriteString("No categories yet.\n")
		return b.String()
	}
	b.WriteString("| ID | Name | Type | Color |\n|---:|---|---|---|\n")
	for _, c := range cats {
		fmt.Fprintf(&b, "| %d | %s | %s | `%s` |\n", c.ID, cell(categoryLabel(c.Icon, c.Name)), c.Type, c.Color)
	}
	return b.String()
}

func investmentMarkdown(d dashboard.InvestmentData, cur *format.Currency) string {
	var b strings.Builder
	b.WriteString("# Investments\n\n")
	fmt.Fprintf(&b, "Portfolio value: **%s**, monthly budget: **%s**\n\n",
		cur.Format(d.Summary.TotalValue), cur.Format(d.Summary.MonthlyBudget))

	b.WriteString("## Allocation\n\n| Group | Value | Current | Target | Drift |\n|---|---:|---:|---:|---:|\n")
	for _, a := range d.Summary.Allocations {
		fmt.Fprintf(&b, "| %s %s | %s | %s | %s | %s |\n",
			a.Glyph, a.Name, cur.Format(a.Value),
			format.Percent(a.Percentage), format.Percent(a.Target), format.SignedPercent(a.Drift))
	}

	b.WriteString("\n## Holdings\n\n| Asset | Platform | Value | Share |\n|---|---|---:|---:|\n")
	for _, h := range d.Summary.Holdings {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			cell(h.Name), cell(h.Platform), cur.Format(h.CurrentValue), format.Percent(h.Percentage))
	}

	b.WriteString("\n")
	b.WriteString(planMarkdown(d.Plan, cur))

	b.WriteString("\n## Action items\n\n")
	if len(d.ActionItems) == 0 {
		b.WriteString("Nothing to do.\n")
	}
	for _, it := range d.ActionItems {
		marker := ""
		if it.Priority == invest.PriorityHigh {
			marker = "**!** "
		}
		fmt.Fprintf(&b, "- %s**%s**: %s", marker, it.Title, it.Description)
		if it.Action == invest.ActionStartPlan {
			b.WriteString(" (run `finctl invest-start`)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func planMarkdown(p invest.Plan, cur *format.Currency) string {
	var b strings.Builder
	b.WriteString("## Contribution plan\n\n")
	if p.Status == invest.StatusNotStarted {
		b.WriteString("The plan has not been started.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%s since %s", p.PhaseLabel, format.Date(p.StartDate))
	if p.MonthsRemaining != nil {
		fmt.Fprintf(&b, ", %d month(s) remaining", *p.MonthsRemaining)
	}
	b.WriteString("\n\n| Group | Buy | Suggested | Why |\n|---|---|---:|---|\n")
	for _, gc := range p.GroupContributions {
		asset := string(gc.Asset)
		if a, ok := invest.LookupAsset(gc.Asset); ok {
			asset = a.Name
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", gc.Name, cell(asset), cur.Format(gc.SuggestedContribution), cell(gc.Reason))
	}
	fmt.Fprintf(&b, "\nTotal this month: **%s**\n", cur.Format(p.Total()))
	return b.String()
}

func contributionsMarkdown(list []invest.Contribution, cur *format.Currency) string {
	var b strings.Builder
	b.WriteString("# Contributions\n\n")
	if len(list) == 0 {
		b.WriteString("No contributions recorded.\n")
		return b.String()
	}
	b.WriteString("| Date | Asset | Amount | Notes |\n|---|---|---:|---|\n")
	for _, c := range list {
		name := string(c.Type)
		if a, ok := invest.LookupAsset(c.Type); ok {
			name = a.Name
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", format.Date(c.Date), cell(name), cur.Format(c.Amount), cell(c.Notes))
	}
	return b.String()
}
