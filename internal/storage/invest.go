package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/invest"
)

// ListHoldings returns the seeded holdings in asset table order.
func (r *Repository) ListHoldings(ctx context.Context) ([]invest.Holding, error) {
	rows, err := r.query(ctx, `SELECT type, platform, current_value FROM holdings`)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	byType := make(map[invest.AssetType]invest.Holding)
	for rows.Next() {
		var (
			h     invest.Holding
			asset string
		)
		if err := rows.Scan(&asset, &h.Platform, &h.CurrentValue); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.Type = invest.AssetType(asset)
		byType[h.Type] = h
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	holdings := make([]invest.Holding, 0, len(byType))
	for _, a := range invest.Assets() {
		h, ok := byType[a.Type]
		if !ok {
			continue
		}
		h.Name = a.Name
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// SetHoldingValue records a new mark-to-market value.
func (r *Repository) SetHoldingValue(ctx context.Context, asset invest.AssetType, value decimal.Decimal) (invest.Holding, error) {
	res, err := r.exec(ctx, `UPDATE holdings SET current_value = ?, updated_at = ? WHERE type = ?`,
		value, r.now().Unix(), string(asset))
	if err != nil {
		return invest.Holding{}, fmt.Errorf("update holding %s: %w", asset, err)
	}
	if err := affected(res, core.ErrNotFound); err != nil {
		return invest.Holding{}, fmt.Errorf("update holding %s: %w", asset, err)
	}

	h := invest.Holding{Type: asset, CurrentValue: value}
	if err := r.queryRow(ctx, `SELECT platform FROM holdings WHERE type = ?`, string(asset)).Scan(&h.Platform); err != nil {
		return invest.Holding{}, fmt.Errorf("read holding %s: %w", asset, err)
	}
	if a, ok := invest.LookupAsset(asset); ok {
		h.Name = a.Name
	}
	return h, nil
}

// ListContributions returns the contribution history, newest first.
func (r *Repository) ListContributions(ctx context.Context) ([]invest.Contribution, error) {
	rows, err := r.query(ctx, `SELECT id, type, amount, date, notes FROM contributions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	out := []invest.Contribution{}
	for rows.Next() {
		var (
			c     invest.Contribution
			asset string
			date  string
		)
		if err := rows.Scan(&c.ID, &asset, &c.Amount, &date, &c.Notes); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.Type = invest.AssetType(asset)
		if c.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("contribution %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CreateContribution(ctx context.Context, c invest.Contribution) (invest.Contribution, error) {
	id, err := r.insert(ctx, `INSERT INTO contributions (type, amount, date, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(c.Type), c.Amount, c.Date.String(), c.Notes, r.now().Unix())
	if err != nil {
		return invest.Contribution{}, fmt.Errorf("create contribution: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *Repository) GetPlanConfig(ctx context.Context) (invest.PlanConfig, error) {
	var (
		cfg   invest.PlanConfig
		start sql.NullString
	)
	err := r.queryRow(ctx, `SELECT monthly_budget, start_date FROM plan_config WHERE id = 1`).Scan(&cfg.MonthlyBudget, &start)
	if err != nil {
		return invest.PlanConfig{}, fmt.Errorf("get plan config: %w", err)
	}
	if start.Valid && start.String != "" {
		if cfg.StartDate, err = core.ParseDate(start.String); err != nil {
			return invest.PlanConfig{}, fmt.Errorf("plan start date: %w", err)
		}
	}
	return cfg, nil
}

// SavePlanConfig stores the budget and start date; a zero start date clears it.
func (r *Repository) SavePlanConfig(ctx context.Context, cfg invest.PlanConfig) (invest.PlanConfig, error) {
	var start any
	if cfg.Started() {
		start = cfg.StartDate.String()
	}
	if _, err := r.exec(ctx, `UPDATE plan_config SET monthly_budget = ?, start_date = ? WHERE id = 1`,
		cfg.MonthlyBudget, start); err != nil {
		return invest.PlanConfig{}, fmt.Errorf("save plan config: %w", err)
	}
	return r.GetPlanConfig(ctx)
}

// StartPlan sets the start date once; a plan that already has one returns
// core.ErrPlanAlreadyStarted.
func (r *Repository) StartPlan(ctx context.Context, day core.Date) (invest.PlanConfig, error) {
	res, err := r.exec(ctx, `UPDATE plan_config SET start_date = ? WHERE id = 1 AND (start_date IS NULL OR start_date = '')`,
		day.String())
	if err != nil {
		return invest.PlanConfig{}, fmt.Errorf("start plan: %w", err)
	}
	if err := affected(res, core.ErrPlanAlreadyStarted); err != nil {
		return invest.PlanConfig{}, err
	}
	return r.GetPlanConfig(ctx)
}
