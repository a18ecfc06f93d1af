package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil || d != NewDate(2025, 3, 9) {
		t.Fatalf("unexpected %v %v", d, err)
	}
	d, err = ParseDate("2025-03-09T10:00:00.000Z")
	if err != nil || d != NewDate(2025, 3, 9) {
		t.Fatalf("timestamp not truncated: %v %v", d, err)
	}
	if _, err := ParseDate("09/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMonthsSince(t *testing.T) {
	start := NewDate(2025, 1, 15)
	cases := []struct {
		d    Date
		want int
	}{
		{NewDate(2025, 1, 15), 0},
		{NewDate(2025, 2, 14), 0},
		{NewDate(2025, 2, 15), 1},
		{NewDate(2025, 9, 20), 8},
		{NewDate(2026, 1, 15), 12},
		{NewDate(2024, 12, 1), 0},
	}
	for _, tc := range cases {
		if got := tc.d.MonthsSince(start); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.d, tc.want, got)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2025-05-01"}`), &v); err != nil {
		t.Fatal(err)
	}
	out, _ := json.Marshal(v)
	if string(out) != `{"d":"2025-05-01"}` {
		t.Fatalf("unexpected %s", out)
	}
	if err := json.Unmarshal([]byte(`{"d":null}`), &v); err != nil || !v.D.IsZero() {
		t.Fatalf("null should decode to zero date: %v %v", v.D, err)
	}
}

func TestDateRange(t *testing.T) {
	now := time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)
	r := CurrentMonth(now)
	if r.Start != NewDate(2025, 6, 1) || r.End != NewDate(2025, 6, 18) {
		t.Fatalf("unexpected range %s", r)
	}
	if !r.Contains(NewDate(2025, 6, 18)) || r.Contains(NewDate(2025, 5, 31)) {
		t.Fatalf("contains is not inclusive on both ends")
	}
	bad := DateRange{Start: NewDate(2025, 6, 2), End: NewDate(2025, 6, 1)}
	if !errors.Is(bad.Validate(), ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Amount: decimal.NewFromInt(100),
		Date:   NewDate(2025, 1, 1),
		Type:   Expense,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Amount: decimal.Zero, Date: NewDate(2025, 1, 1), Type: Expense},
		{Amount: decimal.NewFromInt(-5), Date: NewDate(2025, 1, 1), Type: Expense},
		{Amount: decimal.NewFromInt(1), Date: NewDate(2025, 1, 1), Type: "transfer"},
		{Amount: decimal.NewFromInt(1), Type: Income},
		{Amount: decimal.NewFromInt(1), Date: NewDate(2025, 1, 1), Type: Income, Description: strings.Repeat("x", 201)},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCategoryNormalizeAndValidate(t *testing.T) {
	c := Category{Name: "  Food ", Icon: "🍔", Type: Expense}
	c.Normalize()
	if c.Name != "Food" || c.Color != DefaultCategoryColor {
		t.Fatalf("unexpected normalized category %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	c.Color = "red"
	if !errors.Is(c.Validate(), ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor")
	}
	if !errors.Is((Category{Color: DefaultCategoryColor, Type: Income}).Validate(), ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName")
	}
}

func TestCategoryInUseError(t *testing.T) {
	var err error = &CategoryInUseError{Count: 3}
	if !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected errors.Is to match ErrCategoryInUse")
	}
	if err.Error() != "Cannot delete category: 3 transaction(s) still use it" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestTransactionJSONAmountIsNumber(t *testing.T) {
	tx := Transaction{ID: 1, Amount: decimal.NewFromInt(1000000), Date: NewDate(2025, 1, 2), Type: Income}
	out, err := json.Marshal(tx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"amount":1000000`) {
		t.Fatalf("amount should be a JSON number: %s", out)
	}
	if !strings.Contains(string(out), `"category_id":null`) {
		t.Fatalf("category_id should be null: %s", out)
	}
}

func TestSummarize(t *testing.T) {
	salary := int64(1)
	food := int64(2)
	cats := []Category{
		{ID: salary, Name: "Salary", Color: "#10B981", Type: Income},
		{ID: food, Name: "Food", Color: "#EF4444", Type: Expense},
	}
	txs := []Transaction{
		{ID: 1, Amount: decimal.NewFromInt(1000000), Type: Income, Date: NewDate(2025, 1, 1), CategoryID: &salary},
		{ID: 2, Amount: decimal.NewFromInt(300000), Type: Expense, Date: NewDate(2025, 1, 2), CategoryID: &food},
	}
	s := Summarize(txs, cats)
	if !s.Income.Equal(decimal.NewFromInt(1000000)) || !s.Expenses.Equal(decimal.NewFromInt(300000)) ||
		!s.Net.Equal(decimal.NewFromInt(700000)) || s.Count != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if len(s.ByCategory) != 2 || s.ByCategory[0].Name != "Salary" || s.ByCategory[1].CategoryType != Expense {
		t.Fatalf("unexpected breakdown %+v", s.ByCategory)
	}
}
