// Package format renders amounts, dates and percentages for display.
package format

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Currency formats amounts of one currency at a fixed number of fraction
// digits.
type Currency struct {
	code      string
	precision int32
	formatter *money.Formatter
}

// NewCurrency returns a formatter for the ISO code. Separators and symbol
// come from the go-money currency table; precision overrides its fraction
// digits. Unknown codes fall back to a plain "CODE 1,234" layout.
func NewCurrency(code string, precision int32) *Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	if precision < 0 {
		precision = 0
	}
	grapheme, decSep, thouSep := code, ".", ","
	if cur := money.GetCurrency(code); cur != nil {
		grapheme, decSep, thouSep = cur.Grapheme, cur.Decimal, cur.Thousand
	}
	return &Currency{
		code:      code,
		precision: precision,
		formatter: money.NewFormatter(int(precision), decSep, thouSep, grapheme, "$ 1"),
	}
}

// IDR formats Indonesian rupiah without fraction digits, "Rp 5.000.000".
func IDR() *Currency {
	return NewCurrency("IDR", 0)
}

func (c *Currency) Code() string     { return c.code }
func (c *Currency) Precision() int32 { return c.precision }

// Format rounds amount to the currency precision and renders it.
func (c *Currency) Format(amount decimal.Decimal) string {
	minor := amount.Round(c.precision).Shift(c.precision)
	return c.formatter.Format(minor.IntPart())
}

// Signed prefixes positive amounts with a plus sign.
func (c *Currency) Signed(amount decimal.Decimal) string {
	if amount.IsPositive() {
		return "+" + c.Format(amount)
	}
	return c.Format(amount)
}

// Percent renders a percentage with one decimal, "12.5%".
func Percent(p decimal.Decimal) string {
	return p.StringFixed(1) + "%"
}

// SignedPercent renders a drift, "+2.5%" or "-40.0%".
func SignedPercent(p decimal.Decimal) string {
	if p.IsPositive() {
		return "+" + Percent(p)
	}
	return Percent(p)
}

// WholePercent renders a chart label, "33%".
func WholePercent(p decimal.Decimal) string {
	return p.Round(0).String() + "%"
}

// Date renders a day as "2 Jan 2006"; zero dates render as "-".
func Date(d core.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("2 Jan 2006")
}

// Range renders an inclusive date range.
func Range(r core.DateRange) string {
	return Date(r.Start) + " – " + Date(r.End)
}
