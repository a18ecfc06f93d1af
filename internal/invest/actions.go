package invest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Priority of an action item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// Action item categories.
const (
	CategorySetup        = "setup"
	CategoryRebalance    = "rebalance"
	CategoryValuation    = "valuation"
	CategoryContribution = "contribution"
)

// ActionStartPlan is the one-click trigger that starts the plan today.
const ActionStartPlan = "start_plan"

// ActionItem is a follow-up derived from the current plan state.
type ActionItem struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Action      string   `json:"action,omitempty"`
}

// Engine bundles the configured policy with its thresholds.
type Engine struct {
	Policy PhasePolicy
	// Precision is the number of decimal places of the currency.
	Precision int32
	// SevereDrift is the underweight, in percentage points, that raises a
	// high priority rebalance item.
	SevereDrift decimal.Decimal
}

// Plan builds this month's contribution plan.
func (e Engine) Plan(holdings []Holding, cfg PlanConfig, today core.Date) (Snapshot, Plan) {
	snap := NewSnapshot(holdings)
	return snap, BuildPlan(e.Policy, snap, cfg, today, e.Precision)
}

// ActionItems derives the follow-ups, high priority first.
func (e Engine) ActionItems(holdings []Holding, cfg PlanConfig, contributions []Contribution, today core.Date) []ActionItem {
	snap, plan := e.Plan(holdings, cfg, today)

	var high, normal []ActionItem
	if !cfg.Started() {
		high = append(high, ActionItem{
			ID:          "start_plan",
			Category:    CategorySetup,
			Priority:    PriorityHigh,
			Title:       "Start your investment plan",
			Description: "The plan has no start date yet. Start it today to begin the monthly schedule.",
			Action:      ActionStartPlan,
		})
	}
	if !cfg.MonthlyBudget.IsPositive() {
		high = append(high, ActionItem{
			ID:          "set_budget",
			Category:    CategorySetup,
			Priority:    PriorityHigh,
			Title:       "Set a monthly budget",
			Description: "No monthly budget is configured, so no contributions can be suggested.",
		})
	}
	if !snap.TotalValue.IsPositive() {
		normal = append(normal, ActionItem{
			ID:          "update_values",
			Category:    CategoryValuation,
			Priority:    PriorityNormal,
			Title:       "Record current holding values",
			Description: "All holdings are at zero. Update their values to see your allocation.",
		})
	} else {
		for _, a := range snap.Allocations {
			if !a.Underweight().GreaterThan(e.SevereDrift) {
				continue
			}
			high = append(high, ActionItem{
				ID:       "underweight_" + string(a.Group),
				Category: CategoryRebalance,
				Priority: PriorityHigh,
				Title:    fmt.Sprintf("%s is severely underweight", a.Name),
				Description: fmt.Sprintf("%s is at %s%% against a %s%% target.",
					a.Name, a.Percentage.StringFixed(1), a.Target.StringFixed(0)),
			})
		}
	}
	if cfg.Started() && cfg.MonthlyBudget.IsPositive() && !contributedInMonth(contributions, today) {
		normal = append(normal, ActionItem{
			ID:          "contribute_this_month",
			Category:    CategoryContribution,
			Priority:    PriorityNormal,
			Title:       "Make this month's contribution",
			Description: contributionHint(plan, e.Precision),
		})
	}
	return append(append([]ActionItem{}, high...), normal...)
}

func contributedInMonth(contributions []Contribution, today core.Date) bool {
	for _, c := range contributions {
		if c.Date.Year() == today.Year() && c.Date.Month() == today.Month() {
			return true
		}
	}
	return false
}

func contributionHint(plan Plan, precision int32) string {
	var parts []string
	for _, gc := range plan.GroupContributions {
		if gc.SuggestedContribution.IsPositive() {
			parts = append(parts, fmt.Sprintf("%s to %s", gc.SuggestedContribution.StringFixed(precision), gc.Name))
		}
	}
	if len(parts) == 0 {
		return "No contribution recorded this month."
	}
	return "No contribution recorded this month. Suggested: " + strings.Join(parts, ", ") + "."
}
