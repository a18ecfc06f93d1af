package invest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Plan lifecycle states.
const (
	StatusNotStarted  = "not_started"
	StatusActive      = "active"
	StatusMaintenance = "maintenance"
)

// GroupContribution is the suggested contribution for one group this month.
type GroupContribution struct {
	Group                 GroupKey        `json:"group"`
	Name                  string          `json:"name"`
	Asset                 AssetType       `json:"asset"`
	SuggestedContribution decimal.Decimal `json:"suggestedContribution"`
	Reason                string          `json:"reason"`
	CurrentPercentage     decimal.Decimal `json:"currentPercentage"`
	TargetPercentage      decimal.Decimal `json:"targetPercentage"`
	Drift                 decimal.Decimal `json:"drift"`
}

// Plan is the contribution plan for the current month.
type Plan struct {
	Policy             string              `json:"policy"`
	Status             string              `json:"status"`
	CurrentPhase       int                 `json:"currentPhase"`
	PhaseLabel         string              `json:"phaseLabel"`
	MonthsElapsed      int                 `json:"monthsElapsed"`
	MonthsRemaining    *int                `json:"monthsRemaining"`
	MonthlyBudget      decimal.Decimal     `json:"monthlyBudget"`
	StartDate          core.Date           `json:"startDate"`
	GroupContributions []GroupContribution `json:"groupContributions"`
}

// Suggested returns the suggestion for group k.
func (p Plan) Suggested(k GroupKey) decimal.Decimal {
	for _, gc := range p.GroupContributions {
		if gc.Group == k {
			return gc.SuggestedContribution
		}
	}
	return decimal.Zero
}

// Total sums all suggestions.
func (p Plan) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, gc := range p.GroupContributions {
		sum = sum.Add(gc.SuggestedContribution)
	}
	return sum
}

// BuildPlan derives this month's contribution plan. The suggestions always
// add up to exactly cfg.MonthlyBudget; precision is the number of decimal
// places of the currency.
func BuildPlan(policy PhasePolicy, snap Snapshot, cfg PlanConfig, today core.Date, precision int32) Plan {
	state := PlanState{StartDate: cfg.StartDate, Today: today}
	phase := policy.Phase(snap, state)

	plan := Plan{
		Policy:        policy.Name(),
		CurrentPhase:  phase.Number,
		PhaseLabel:    phase.Label,
		MonthsElapsed: state.MonthsElapsed(),
		MonthlyBudget: cfg.MonthlyBudget,
		StartDate:     cfg.StartDate,
	}
	switch {
	case !cfg.Started():
		plan.Status = StatusNotStarted
	case phase.Maintenance():
		plan.Status = StatusMaintenance
	default:
		plan.Status = StatusActive
	}
	if left := policy.MonthsRemaining(state); left >= 0 {
		plan.MonthsRemaining = &left
	}

	var amounts map[GroupKey]decimal.Decimal
	if phase.Maintenance() {
		amounts = splitByTarget(cfg.MonthlyBudget, precision)
	} else {
		amounts = map[GroupKey]decimal.Decimal{phase.Focus: cfg.MonthlyBudget}
	}

	for _, g := range groups {
		share, _ := snap.Allocation(g.Key)
		amount, ok := amounts[g.Key]
		if !ok {
			amount = decimal.Zero
		}
		gc := GroupContribution{
			Group:                 g.Key,
			Name:                  g.Name,
			Asset:                 g.Contribute,
			SuggestedContribution: amount,
			CurrentPercentage:     share.Percentage,
			TargetPercentage:      g.Target,
			Drift:                 share.Drift,
		}
		switch {
		case phase.Maintenance():
			gc.Reason = fmt.Sprintf("Proportional to %s%% target", g.Target.StringFixed(0))
		case g.Key == phase.Focus:
			gc.Reason = phase.Reason
		default:
			gc.Reason = fmt.Sprintf("On hold while %s catches up", groupName(phase.Focus))
		}
		plan.GroupContributions = append(plan.GroupContributions, gc)
	}
	return plan
}

// splitByTarget divides budget by target percentages, rounding each share
// down to precision and giving the remainder to the largest-target group.
func splitByTarget(budget decimal.Decimal, precision int32) map[GroupKey]decimal.Decimal {
	out := make(map[GroupKey]decimal.Decimal, len(groups))
	allocated := decimal.Zero
	for _, g := range groups {
		amount := budget.Mul(g.Target).Div(hundred).RoundFloor(precision)
		out[g.Key] = amount
		allocated = allocated.Add(amount)
	}
	sink := largestTarget()
	out[sink] = out[sink].Add(budget.Sub(allocated))
	return out
}

func groupName(k GroupKey) string {
	if g, ok := LookupGroup(k); ok {
		return g.Name
	}
	return string(k)
}
