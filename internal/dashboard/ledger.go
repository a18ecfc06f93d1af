package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/client"
	"fintrack/internal/core"
)

// TypeFilter narrows the fetched list without querying again.
type TypeFilter string

const (
	FilterAll     TypeFilter = "all"
	FilterExpense TypeFilter = "expense"
	FilterIncome  TypeFilter = "income"
)

// ParseTypeFilter accepts all, expense or income; empty means all.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch f := TypeFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterExpense, FilterIncome:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q: want all, expense or income", s)
	}
}

// FilterTransactions returns the transactions matching f, keeping order.
func FilterTransactions(txs []core.Transaction, f TypeFilter) []core.Transaction {
	if f == FilterAll || f == "" {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if string(tx.Type) == string(f) {
			out = append(out, tx)
		}
	}
	return out
}

// CategoriesOfType returns the categories whose type equals t.
func CategoriesOfType(categories []core.Category, t core.TxType) []core.Category {
	out := make([]core.Category, 0, len(categories))
	for _, c := range categories {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// TransactionForm is the create/edit form. It only offers categories of the
// selected type.
type TransactionForm struct {
	ID          int64
	Type        core.TxType
	Amount      string
	Date        string
	Description string
	Vendor      string
	CategoryID  *int64

	categories []core.Category
}

// NewTransactionForm starts an empty expense form dated today.
func NewTransactionForm(categories []core.Category, today core.Date) *TransactionForm {
	return &TransactionForm{Type: core.Expense, Date: today.String(), categories: categories}
}

// EditForm fills the form from an existing transaction.
func EditForm(tx core.Transaction, categories []core.Category) *TransactionForm {
	f := &TransactionForm{
		ID:          tx.ID,
		Type:        tx.Type,
		Amount:      tx.Amount.String(),
		Date:        tx.Date.String(),
		Description: tx.Description,
		Vendor:      tx.Vendor,
		categories:  categories,
	}
	if tx.CategoryID != nil {
		id := *tx.CategoryID
		f.CategoryID = &id
	}
	return f
}

// Options lists the categories the form offers.
func (f *TransactionForm) Options() []core.Category {
	return CategoriesOfType(f.categories, f.Type)
}

// SetType switches the transaction type; a change clears the category.
func (f *TransactionForm) SetType(t core.TxType) {
	if t != f.Type {
		f.CategoryID = nil
	}
	f.Type = t
}

// SelectCategory picks one of the offered categories; nil clears it.
func (f *TransactionForm) SelectCategory(id *int64) error {
	if id == nil {
		f.CategoryID = nil
		return nil
	}
	for _, c := range f.Options() {
		if c.ID == *id {
			v := *id
			f.CategoryID = &v
			return nil
		}
	}
	return core.ErrCategoryTypeMismatch
}

// Transaction builds the request body. Only required fields are checked;
// everything else is validated by the backend.
func (f *TransactionForm) Transaction() (core.Transaction, error) {
	if strings.TrimSpace(f.Amount) == "" {
		return core.Transaction{}, &client.ValidationError{Field: "Amount"}
	}
	if strings.TrimSpace(f.Date) == "" {
		return core.Transaction{}, &client.ValidationError{Field: "Date"}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(f.Amount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: amount %q", core.ErrInvalidInput, f.Amount)
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          f.ID,
		Amount:      amount,
		Date:        date,
		Type:        f.Type,
		Description: f.Description,
		Vendor:      f.Vendor,
		CategoryID:  f.CategoryID,
	}, nil
}

// LedgerAPI is the ledger half of the REST client.
type LedgerAPI interface {
	ListTransactions(ctx context.Context, dr core.DateRange) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Summary(ctx context.Context, dr core.DateRange) (core.Summary, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// LedgerData is one committed ledger batch.
type LedgerData struct {
	Range        core.DateRange
	Transactions []core.Transaction
	Categories   []core.Category
	Summary      core.Summary
}

// LedgerView loads expenses, categories and stats together. Mutations are
// followed by a full reload.
type LedgerView struct {
	api    LedgerAPI
	latest Latest
	data   LedgerData
}

func NewLedgerView(api LedgerAPI) *LedgerView {
	return &LedgerView{api: api}
}

// Data returns the last committed batch.
func (v *LedgerView) Data() LedgerData {
	v.latest.mu.Lock()
	defer v.latest.mu.Unlock()
	return v.data
}

// Load fetches the three parts of dr concurrently and commits them together.
func (v *LedgerView) Load(ctx context.Context, dr core.DateRange) error {
	var next LedgerData
	next.Range = dr
	return v.latest.Do(ctx, func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			next.Transactions, err = v.api.ListTransactions(ctx, dr)
			return err
		})
		g.Go(func() (err error) {
			next.Categories, err = v.api.ListCategories(ctx)
			return err
		})
		g.Go(func() (err error) {
			next.Summary, err = v.api.Summary(ctx, dr)
			return err
		})
		return g.Wait()
	}, func(err error) {
		if err == nil {
			v.data = next
		}
	})
}

// Filtered applies the type filter to the committed list.
func (v *LedgerView) Filtered(f TypeFilter) []core.Transaction {
	return FilterTransactions(v.Data().Transactions, f)
}

// Save creates or updates the form's transaction and reloads.
func (v *LedgerView) Save(ctx context.Context, form *TransactionForm) (core.Transaction, error) {
	tx, err := form.Transaction()
	if err != nil {
		return core.Transaction{}, err
	}
	var saved core.Transaction
	if tx.ID == 0 {
		saved, err = v.api.CreateTransaction(ctx, tx)
	} else {
		saved, err = v.api.UpdateTransaction(ctx, tx.ID, tx)
	}
	if err != nil {
		return core.Transaction{}, err
	}
	return saved, v.Load(ctx, v.Data().Range)
}

// Delete removes a transaction and reloads.
func (v *LedgerView) Delete(ctx context.Context, id int64) error {
	if err := v.api.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	return v.Load(ctx, v.Data().Range)
}
