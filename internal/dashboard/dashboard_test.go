package dashboard

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/client"
	"fintrack/internal/core"
	"fintrack/internal/invest"
)

type fakeAuth struct {
	pin       string
	loggedOut bool
	netDown   bool
}

func (a *fakeAuth) VerifyEmail(_ context.Context, email string) error {
	if a.netDown {
		return client.ErrConnection
	}
	if email != "me@example.com" {
		return &client.APIError{Status: http.StatusNotFound, Message: "Email not registered"}
	}
	return nil
}

func (a *fakeAuth) VerifyPIN(_ context.Context, email, pin string) (client.Session, error) {
	if pin != a.pin {
		return client.Session{}, &client.APIError{Status: http.StatusUnauthorized, Message: "Invalid or expired PIN"}
	}
	return client.Session{Email: email, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (a *fakeAuth) Logout(context.Context) error {
	a.loggedOut = true
	return nil
}

func TestGateTransitions(t *testing.T) {
	ctx := context.Background()
	store := client.NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	auth := &fakeAuth{pin: "123456"}
	g := NewGate(auth, store)
	require.Equal(t, StepEmail, g.Step())

	require.Error(t, g.SubmitEmail(ctx, "stranger@example.com"))
	assert.Equal(t, StepEmail, g.Step())
	assert.Equal(t, "Email not registered", g.Err())

	require.NoError(t, g.SubmitEmail(ctx, " me@example.com "))
	assert.Equal(t, StepPIN, g.Step())
	assert.Empty(t, g.Err())

	require.Error(t, g.SubmitPIN(ctx, "000000"))
	assert.Equal(t, StepPIN, g.Step(), "a wrong PIN stays on the PIN step")
	assert.Equal(t, "Invalid or expired PIN", g.Err())

	g.Back()
	assert.Equal(t, StepEmail, g.Step())
	assert.Empty(t, g.Err())

	require.NoError(t, g.SubmitEmail(ctx, "me@example.com"))
	require.NoError(t, g.SubmitPIN(ctx, "123456"))
	assert.Equal(t, StepAuthenticated, g.Step())

	restored := NewGate(auth, store)
	m, ok := restored.Session()
	require.True(t, ok, "a stored marker survives a restart")
	assert.Equal(t, "tok", m.Token)

	require.NoError(t, restored.Logout(ctx))
	assert.True(t, auth.loggedOut)
	assert.Equal(t, StepEmail, restored.Step())
	_, ok = store.Load(time.Now())
	assert.False(t, ok)
}

func TestGateConnectionError(t *testing.T) {
	g := NewGate(&fakeAuth{netDown: true}, client.NewSessionStore(filepath.Join(t.TempDir(), "s.json")))
	require.Error(t, g.SubmitEmail(context.Background(), "me@example.com"))
	assert.Equal(t, "Connection error", g.Err())
	assert.Equal(t, StepEmail, g.Step())
}

func TestGateExpiredMarkerLoadsLoggedOut(t *testing.T) {
	store := client.NewSessionStore(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, store.Save(client.Marker{Email: "me@example.com", Authenticated: true, Token: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	g := NewGate(&fakeAuth{}, store)
	assert.Equal(t, StepEmail, g.Step())
}

func ptr(v int64) *int64 { return &v }

var (
	food   = core.Category{ID: 1, Name: "Food", Color: "#FF0000", Type: core.Expense}
	salary = core.Category{ID: 2, Name: "Salary", Color: "#00FF00", Type: core.Income}
)

func TestFilterTransactions(t *testing.T) {
	txs := []core.Transaction{{ID: 1, Type: core.Expense}, {ID: 2, Type: core.Income}, {ID: 3, Type: core.Expense}}
	assert.Len(t, FilterTransactions(txs, FilterAll), 3)
	assert.Equal(t, []core.Transaction{txs[0], txs[2]}, FilterTransactions(txs, FilterExpense))
	assert.Equal(t, []core.Transaction{txs[1]}, FilterTransactions(txs, FilterIncome))

	f, err := ParseTypeFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	_, err = ParseTypeFilter("transfers")
	assert.Error(t, err)
}

func TestTransactionFormOffersOnlyMatchingCategories(t *testing.T) {
	form := NewTransactionForm([]core.Category{food, salary}, core.NewDate(2025, 5, 3))
	assert.Equal(t, []core.Category{food}, form.Options())

	require.NoError(t, form.SelectCategory(ptr(food.ID)))
	assert.ErrorIs(t, form.SelectCategory(ptr(salary.ID)), core.ErrCategoryTypeMismatch, "income categories are not offered on an expense form")

	form.SetType(core.Income)
	assert.Nil(t, form.CategoryID, "switching type clears the category")
	assert.Equal(t, []core.Category{salary}, form.Options())

	form.SetType(core.Income)
	require.NoError(t, form.SelectCategory(ptr(salary.ID)))
	form.SetType(core.Income)
	assert.NotNil(t, form.CategoryID, "re-selecting the same type keeps the category")
}

func TestTransactionFormRequiredFields(t *testing.T) {
	form := NewTransactionForm(nil, core.NewDate(2025, 5, 3))
	_, err := form.Transaction()
	var vErr *client.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Amount", vErr.Field)

	form.Amount = "300000"
	form.Date = ""
	_, err = form.Transaction()
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Date", vErr.Field)

	form.Date = "2025-05-03"
	tx, err := form.Transaction()
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(300000)))
	assert.Equal(t, core.Expense, tx.Type)
}

func TestLatestOnlyNewestCommits(t *testing.T) {
	var l Latest
	started := make(chan struct{})
	var committed []string
	var mu sync.Mutex
	record := func(name string) func(error) {
		return func(err error) {
			if err == nil {
				mu.Lock()
				committed = append(committed, name)
				mu.Unlock()
			}
		}
	}

	errFirst := make(chan error, 1)
	go func() {
		errFirst <- l.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}, record("first"))
	}()
	<-started

	require.NoError(t, l.Do(context.Background(), func(context.Context) error { return nil }, record("second")))
	assert.ErrorIs(t, <-errFirst, ErrSuperseded)
	assert.Equal(t, []string{"second"}, committed)
}

type fakeLedger struct {
	mu       sync.Mutex
	txs      []core.Transaction
	cats     []core.Category
	loads    atomic.Int32
	failStat error
}

func (f *fakeLedger) ListTransactions(context.Context, core.DateRange) ([]core.Transaction, error) {
	f.loads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Transaction(nil), f.txs...), nil
}

func (f *fakeLedger) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx.ID = int64(len(f.txs) + 1)
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeLedger) UpdateTransaction(_ context.Context, id int64, tx core.Transaction) (core.Transaction, error) {
	return tx, nil
}

func (f *fakeLedger) DeleteTransaction(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, tx := range f.txs {
		if tx.ID == id {
			f.txs = append(f.txs[:i], f.txs[i+1:]...)
			return nil
		}
	}
	return &client.APIError{Status: http.StatusNotFound, Message: "Not found"}
}

func (f *fakeLedger) Summary(context.Context, core.DateRange) (core.Summary, error) {
	if f.failStat != nil {
		return core.Summary{}, f.failStat
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return core.Summary{Count: len(f.txs)}, nil
}

func (f *fakeLedger) ListCategories(context.Context) ([]core.Category, error) {
	return f.cats, nil
}

func TestLedgerViewReloadsAfterMutations(t *testing.T) {
	ctx := context.Background()
	api := &fakeLedger{cats: []core.Category{food, salary}}
	v := NewLedgerView(api)
	dr := core.DateRange{Start: core.NewDate(2025, 5, 1), End: core.NewDate(2025, 5, 31)}
	require.NoError(t, v.Load(ctx, dr))
	assert.Len(t, v.Data().Categories, 2)

	form := NewTransactionForm(v.Data().Categories, core.NewDate(2025, 5, 3))
	form.Amount = "50000"
	_, err := v.Save(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Data().Summary.Count, "summary comes from the server after reload")
	assert.Equal(t, dr, v.Data().Range)

	require.NoError(t, v.Delete(ctx, 1))
	assert.Empty(t, v.Data().Transactions)
	assert.EqualValues(t, 3, api.loads.Load())
}

func TestLedgerViewFailedBatchKeepsPreviousData(t *testing.T) {
	ctx := context.Background()
	api := &fakeLedger{txs: []core.Transaction{{ID: 1, Type: core.Expense}}}
	v := NewLedgerView(api)
	require.NoError(t, v.Load(ctx, core.DateRange{}))

	api.failStat = client.ErrConnection
	assert.ErrorIs(t, v.Load(ctx, core.DateRange{}), client.ErrConnection)
	assert.Len(t, v.Data().Transactions, 1)
}

type fakeCategories struct {
	cats   []core.Category
	inUse  map[int64]int
	listed int
}

func (f *fakeCategories) ListCategories(context.Context) ([]core.Category, error) {
	f.listed++
	return append([]core.Category(nil), f.cats...), nil
}

func (f *fakeCategories) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c.ID = int64(len(f.cats) + 1)
	f.cats = append(f.cats, c)
	return c, nil
}

func (f *fakeCategories) UpdateCategory(_ context.Context, id int64, c core.Category) (core.Category, error) {
	return c, nil
}

func (f *fakeCategories) DeleteCategory(_ context.Context, id int64) error {
	if n := f.inUse[id]; n > 0 {
		return &client.APIError{Status: http.StatusConflict, Message: (&core.CategoryInUseError{Count: n}).Error()}
	}
	for i, c := range f.cats {
		if c.ID == id {
			f.cats = append(f.cats[:i], f.cats[i+1:]...)
		}
	}
	return nil
}

func TestCategoryViewDelete(t *testing.T) {
	ctx := context.Background()
	api := &fakeCategories{cats: []core.Category{food, salary}, inUse: map[int64]int{1: 2}}
	v := NewCategoryView(api)
	require.NoError(t, v.Load(ctx))

	msg, err := v.Delete(ctx, food.ID)
	require.Error(t, err)
	assert.Equal(t, "Cannot delete category: 2 transaction(s) still use it", msg)
	assert.Len(t, v.Categories(), 2, "rejected delete leaves state untouched")
	assert.Equal(t, 1, api.listed)

	msg, err = v.Delete(ctx, salary.ID)
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, []core.Category{food}, v.Categories())

	saved, err := v.Save(ctx, core.Category{Name: "Rent", Type: core.Expense})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCategoryColor, saved.Color)
	assert.Len(t, v.OfType(core.Expense), 2)
}

type fakeInvest struct {
	failPlan error
	started  bool
}

func (f *fakeInvest) InvestmentSummary(context.Context) (client.InvestmentSummary, error) {
	return client.InvestmentSummary{MonthlyBudget: decimal.NewFromInt(5000000)}, nil
}

func (f *fakeInvest) ContributionPlan(context.Context) (invest.Plan, error) {
	if f.failPlan != nil {
		return invest.Plan{}, f.failPlan
	}
	status := invest.StatusNotStarted
	if f.started {
		status = invest.StatusActive
	}
	return invest.Plan{Status: status}, nil
}

func (f *fakeInvest) Contributions(context.Context) ([]invest.Contribution, error) {
	return nil, nil
}

func (f *fakeInvest) ActionItems(context.Context) ([]invest.ActionItem, error) {
	if f.started {
		return nil, nil
	}
	return []invest.ActionItem{{ID: "start_plan", Priority: invest.PriorityHigh, Action: invest.ActionStartPlan}}, nil
}

func (f *fakeInvest) UpdateConfig(_ context.Context, cfg invest.PlanConfig) (invest.PlanConfig, error) {
	return cfg, nil
}

func (f *fakeInvest) AddContribution(_ context.Context, c invest.Contribution) (invest.Contribution, error) {
	return c, nil
}

func (f *fakeInvest) SetHolding(_ context.Context, asset invest.AssetType, value decimal.Decimal) (invest.Holding, error) {
	return invest.Holding{Type: asset, CurrentValue: value}, nil
}

func (f *fakeInvest) StartPlan(context.Context) (invest.PlanConfig, error) {
	if f.started {
		return invest.PlanConfig{}, &client.APIError{Status: http.StatusConflict, Message: "Plan already started"}
	}
	f.started = true
	return invest.PlanConfig{}, nil
}

func TestInvestmentViewLoadAndStart(t *testing.T) {
	ctx := context.Background()
	api := &fakeInvest{}
	v := NewInvestmentView(api)

	_, ok := v.Data()
	assert.False(t, ok)

	require.NoError(t, v.Load(ctx))
	data, ok := v.Data()
	require.True(t, ok)
	require.Len(t, data.ActionItems, 1)
	assert.Equal(t, invest.ActionStartPlan, data.ActionItems[0].Action)

	require.NoError(t, v.StartPlan(ctx))
	data, _ = v.Data()
	assert.Equal(t, invest.StatusActive, data.Plan.Status)
	assert.Empty(t, data.ActionItems)

	assert.Error(t, v.StartPlan(ctx))
}

func TestInvestmentViewFailureRendersNothing(t *testing.T) {
	ctx := context.Background()
	api := &fakeInvest{}
	v := NewInvestmentView(api)
	require.NoError(t, v.Load(ctx))

	api.failPlan = client.ErrMalformedResponse
	err := v.Load(ctx)
	assert.ErrorIs(t, err, ErrInvestmentLoad)
	assert.ErrorIs(t, err, client.ErrMalformedResponse)
	_, ok := v.Data()
	assert.False(t, ok, "no stale data after a failed batch")
}

func TestShapeDashboard(t *testing.T) {
	sum := core.Summary{
		Income:   decimal.NewFromInt(1000000),
		Expenses: decimal.NewFromInt(300000),
		Net:      decimal.NewFromInt(700000),
		Count:    2,
		ByCategory: []core.CategoryTotal{
			{ID: 1, Name: "Food", Color: "#FF0000", CategoryType: core.Expense, Total: decimal.NewFromInt(200000)},
			{ID: 3, Name: "Transport", Color: "#0000FF", CategoryType: core.Expense, Total: decimal.NewFromInt(100000)},
			{ID: 2, Name: "Salary", Color: "#00FF00", CategoryType: core.Income, Total: decimal.NewFromInt(1000000)},
			{ID: 4, Name: "Empty", CategoryType: core.Expense, Total: decimal.Zero},
		},
	}
	d := ShapeDashboard(sum)

	require.Len(t, d.Cards, 4)
	assert.True(t, d.Cards[2].Amount.Equal(decimal.NewFromInt(700000)))
	assert.Equal(t, 2, d.Cards[3].Count)

	require.Len(t, d.ExpenseSlices, 2)
	assert.Equal(t, 67, d.ExpenseSlices[0].Percent)
	assert.Equal(t, 33, d.ExpenseSlices[1].Percent)
	assert.Equal(t, "#FF0000", d.ExpenseSlices[0].Color)

	require.Len(t, d.IncomeSlices, 1)
	assert.Equal(t, 100, d.IncomeSlices[0].Percent)

	require.Len(t, d.IncomeVsExpenses, 2)
	assert.Equal(t, IncomeColor, d.IncomeVsExpenses[0].Color)
	assert.Equal(t, 77, d.IncomeVsExpenses[0].Percent)
}

func TestShapeDashboardEmptySummary(t *testing.T) {
	d := ShapeDashboard(core.Summary{})
	assert.Empty(t, d.ExpenseSlices)
	assert.Empty(t, d.IncomeVsExpenses)
	assert.True(t, d.Cards[0].Amount.IsZero())
}
