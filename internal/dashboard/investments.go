package dashboard

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/client"
	"fintrack/internal/invest"
)

// ErrInvestmentLoad is what the investment view shows when any part of its
// batch fails.
var ErrInvestmentLoad = errors.New("Failed to load investment data")

// InvestmentAPI is the investment half of the REST client.
type InvestmentAPI interface {
	InvestmentSummary(ctx context.Context) (client.InvestmentSummary, error)
	ContributionPlan(ctx context.Context) (invest.Plan, error)
	Contributions(ctx context.Context) ([]invest.Contribution, error)
	ActionItems(ctx context.Context) ([]invest.ActionItem, error)
	UpdateConfig(ctx context.Context, cfg invest.PlanConfig) (invest.PlanConfig, error)
	AddContribution(ctx context.Context, c invest.Contribution) (invest.Contribution, error)
	SetHolding(ctx context.Context, asset invest.AssetType, value decimal.Decimal) (invest.Holding, error)
	StartPlan(ctx context.Context) (invest.PlanConfig, error)
}

// InvestmentData is one committed investment batch.
type InvestmentData struct {
	Summary       client.InvestmentSummary
	Plan          invest.Plan
	Contributions []invest.Contribution
	ActionItems   []invest.ActionItem
}

// InvestmentView loads the four investment resources together. A failed
// batch clears the view rather than leaving stale data.
type InvestmentView struct {
	api    InvestmentAPI
	latest Latest
	data   *InvestmentData
}

func NewInvestmentView(api InvestmentAPI) *InvestmentView {
	return &InvestmentView{api: api}
}

// Data returns the committed batch, or false when nothing is loaded.
func (v *InvestmentView) Data() (InvestmentData, bool) {
	v.latest.mu.Lock()
	defer v.latest.mu.Unlock()
	if v.data == nil {
		return InvestmentData{}, false
	}
	return *v.data, true
}

// Load returns ErrInvestmentLoad, wrapping the cause, when any request fails
// or answers with a malformed body.
func (v *InvestmentView) Load(ctx context.Context) error {
	var next InvestmentData
	err := v.latest.Do(ctx, func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			next.Summary, err = v.api.InvestmentSummary(ctx)
			return err
		})
		g.Go(func() (err error) {
			next.Plan, err = v.api.ContributionPlan(ctx)
			return err
		})
		g.Go(func() (err error) {
			next.Contributions, err = v.api.Contributions(ctx)
			return err
		})
		g.Go(func() (err error) {
			next.ActionItems, err = v.api.ActionItems(ctx)
			return err
		})
		return g.Wait()
	}, func(err error) {
		if err != nil {
			v.data = nil
			return
		}
		v.data = &next
	})
	if err == nil || errors.Is(err, ErrSuperseded) {
		return err
	}
	return errors.Join(ErrInvestmentLoad, err)
}

// StartPlan triggers the one-click start_plan action and reloads.
func (v *InvestmentView) StartPlan(ctx context.Context) error {
	if _, err := v.api.StartPlan(ctx); err != nil {
		return err
	}
	return v.Load(ctx)
}

// UpdateConfig saves the plan settings and reloads.
func (v *InvestmentView) UpdateConfig(ctx context.Context, cfg invest.PlanConfig) error {
	if _, err := v.api.UpdateConfig(ctx, cfg); err != nil {
		return err
	}
	return v.Load(ctx)
}

// AddContribution records a contribution and reloads.
func (v *InvestmentView) AddContribution(ctx context.Context, c invest.Contribution) error {
	if _, err := v.api.AddContribution(ctx, c); err != nil {
		return err
	}
	return v.Load(ctx)
}

// SetHolding updates a holding's current value and reloads.
func (v *InvestmentView) SetHolding(ctx context.Context, asset invest.AssetType, value decimal.Decimal) error {
	if _, err := v.api.SetHolding(ctx, asset, value); err != nil {
		return err
	}
	return v.Load(ctx)
}
