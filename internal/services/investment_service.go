package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/invest"
	"fintrack/internal/log"
)

// InvestmentStore is the persistence used by InvestmentService.
type InvestmentStore interface {
	ListHoldings(ctx context.Context) ([]invest.Holding, error)
	SetHoldingValue(ctx context.Context, asset invest.AssetType, value decimal.Decimal) (invest.Holding, error)
	ListContributions(ctx context.Context) ([]invest.Contribution, error)
	CreateContribution(ctx context.Context, c invest.Contribution) (invest.Contribution, error)
	GetPlanConfig(ctx context.Context) (invest.PlanConfig, error)
	SavePlanConfig(ctx context.Context, cfg invest.PlanConfig) (invest.PlanConfig, error)
	StartPlan(ctx context.Context, day core.Date) (invest.PlanConfig, error)
}

// InvestmentSummary is the portfolio snapshot with the plan settings.
type InvestmentSummary struct {
	invest.Snapshot
	StartDate     core.Date       `json:"startDate"`
	MonthlyBudget decimal.Decimal `json:"monthlyBudget"`
}

// InvestmentService recomputes the allocation engine on every call.
type InvestmentService struct {
	store  InvestmentStore
	engine invest.Engine
	logger *log.Logger
	now    func() time.Time
}

func NewInvestmentService(store InvestmentStore, engine invest.Engine, logger *log.Logger) *InvestmentService {
	return &InvestmentService{
		store:  store,
		engine: engine,
		logger: logger.WithComponent(log.ComponentInvest),
		now:    time.Now,
	}
}

func (s *InvestmentService) today() core.Date {
	return core.DateOf(s.now())
}

func (s *InvestmentService) Summary(ctx context.Context) (InvestmentSummary, error) {
	holdings, err := s.store.ListHoldings(ctx)
	if err != nil {
		return InvestmentSummary{}, err
	}
	cfg, err := s.store.GetPlanConfig(ctx)
	if err != nil {
		return InvestmentSummary{}, err
	}
	return InvestmentSummary{
		Snapshot:      invest.NewSnapshot(holdings),
		StartDate:     cfg.StartDate,
		MonthlyBudget: cfg.MonthlyBudget,
	}, nil
}

func (s *InvestmentService) ContributionPlan(ctx context.Context) (invest.Plan, error) {
	holdings, err := s.store.ListHoldings(ctx)
	if err != nil {
		return invest.Plan{}, err
	}
	cfg, err := s.store.GetPlanConfig(ctx)
	if err != nil {
		return invest.Plan{}, err
	}
	_, plan := s.engine.Plan(holdings, cfg, s.today())
	return plan, nil
}

func (s *InvestmentService) Contributions(ctx context.Context) ([]invest.Contribution, error) {
	return s.store.ListContributions(ctx)
}

func (s *InvestmentService) ActionItems(ctx context.Context) ([]invest.ActionItem, error) {
	holdings, err := s.store.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.store.GetPlanConfig(ctx)
	if err != nil {
		return nil, err
	}
	contributions, err := s.store.ListContributions(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.ActionItems(holdings, cfg, contributions, s.today()), nil
}

// UpdateConfig replaces the budget and start date.
func (s *InvestmentService) UpdateConfig(ctx context.Context, cfg invest.PlanConfig) (invest.PlanConfig, error) {
	if err := cfg.Validate(); err != nil {
		return invest.PlanConfig{}, err
	}
	if cfg.Started() {
		if err := cfg.StartDate.Validate(); err != nil {
			return invest.PlanConfig{}, err
		}
	}
	saved, err := s.store.SavePlanConfig(ctx, cfg)
	if err != nil {
		return invest.PlanConfig{}, err
	}
	s.logger.InfoContext(ctx, "Plan settings updated",
		"monthly_budget", saved.MonthlyBudget.String(),
		"start_date", saved.StartDate.String())
	return saved, nil
}

// AddContribution records a contribution; a missing date means today.
func (s *InvestmentService) AddContribution(ctx context.Context, c invest.Contribution) (invest.Contribution, error) {
	if c.Date.IsZero() {
		c.Date = s.today()
	}
	if err := c.Validate(); err != nil {
		return invest.Contribution{}, err
	}
	created, err := s.store.CreateContribution(ctx, c)
	if err != nil {
		return invest.Contribution{}, err
	}
	s.logger.InfoContext(ctx, "Contribution recorded",
		log.FieldAsset, created.Type, log.FieldAmount, created.Amount.String())
	return created, nil
}

// SetHolding overwrites the current value of one asset.
func (s *InvestmentService) SetHolding(ctx context.Context, asset string, value decimal.Decimal) (invest.Holding, error) {
	t, err := invest.ParseAssetType(asset)
	if err != nil {
		return invest.Holding{}, err
	}
	if value.IsNegative() {
		return invest.Holding{}, invest.ErrNegativeValue
	}
	h, err := s.store.SetHoldingValue(ctx, t, value)
	if err != nil {
		return invest.Holding{}, err
	}
	s.logger.InfoContext(ctx, "Holding value updated", log.FieldAsset, t, "value", value.String())
	return h, nil
}

// StartPlan dates the plan from today; it fails with
// core.ErrPlanAlreadyStarted once a start date exists.
func (s *InvestmentService) StartPlan(ctx context.Context) (invest.PlanConfig, error) {
	cfg, err := s.store.StartPlan(ctx, s.today())
	if err != nil {
		return invest.PlanConfig{}, err
	}
	s.logger.InfoContext(ctx, "Investment plan started", "start_date", cfg.StartDate.String())
	return cfg, nil
}
