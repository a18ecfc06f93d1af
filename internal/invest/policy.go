package invest

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Policy names accepted by NewPolicy.
const (
	PolicyTimeline = "timeline"
	PolicyDrift    = "drift"
)

// Timeline month boundaries: months 1-2 build gold, 3-8 build the
// Indonesian group, maintenance afterwards.
const (
	timelineGoldMonths  = 2
	timelineBuildMonths = 8
)

// Phase is where the plan stands this month. A phase with a Focus sends the
// whole budget to that group; without one the budget is split by target.
type Phase struct {
	Number int      `json:"number"`
	Label  string   `json:"label"`
	Focus  GroupKey `json:"focus,omitempty"`
	// Reason explains why the focus group receives the budget.
	Reason string `json:"-"`
}

func (p Phase) Maintenance() bool {
	return p.Focus == ""
}

// PlanState is the time-dependent input of a policy.
type PlanState struct {
	StartDate core.Date
	Today     core.Date
}

func (s PlanState) Started() bool {
	return !s.StartDate.IsZero()
}

// MonthsElapsed counts whole months since the start date, zero if not started.
func (s PlanState) MonthsElapsed() int {
	if !s.Started() {
		return 0
	}
	return s.Today.MonthsSince(s.StartDate)
}

// PhasePolicy decides which phase the plan is in.
type PhasePolicy interface {
	Name() string
	Phase(snap Snapshot, state PlanState) Phase
	// MonthsRemaining reports months left before maintenance, or -1 when the
	// policy has no fixed schedule.
	MonthsRemaining(state PlanState) int
}

// PolicyOptions carries the tunables of every policy.
type PolicyOptions struct {
	// DriftTolerance is the underweight, in percentage points, above which
	// the drift policy stays in catch-up.
	DriftTolerance decimal.Decimal
}

// PolicyFactory builds a policy from options.
type PolicyFactory func(PolicyOptions) PhasePolicy

var policies = map[string]PolicyFactory{
	PolicyTimeline: func(PolicyOptions) PhasePolicy { return TimelinePolicy{} },
	PolicyDrift: func(o PolicyOptions) PhasePolicy {
		return DriftPolicy{Tolerance: o.DriftTolerance}
	},
}

// NewPolicy returns the policy registered under name.
func NewPolicy(name string, opts PolicyOptions) (PhasePolicy, error) {
	f, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown invest policy %q: must be one of %v", name, PolicyNames())
	}
	return f(opts), nil
}

// PolicyNames lists the registered policies.
func PolicyNames() []string {
	names := make([]string, 0, len(policies))
	for n := range policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TimelinePolicy walks a fixed schedule keyed on months since the start
// date. A plan that has not started previews its first month.
type TimelinePolicy struct{}

func (TimelinePolicy) Name() string { return PolicyTimeline }

func (TimelinePolicy) Phase(_ Snapshot, state PlanState) Phase {
	month := state.MonthsElapsed() + 1
	switch {
	case month <= timelineGoldMonths:
		return Phase{Number: 1, Label: "Phase 1: Build Gold", Focus: GroupGold,
			Reason: fmt.Sprintf("Phase 1 (month %d of %d): build gold first", month, timelineGoldMonths)}
	case month <= timelineBuildMonths:
		return Phase{Number: 2, Label: "Phase 2: Build Indo", Focus: GroupIndonesian,
			Reason: fmt.Sprintf("Phase 2 (month %d of %d): build the Indonesian allocation", month, timelineBuildMonths)}
	default:
		return Phase{Number: 3, Label: "Phase 3: Maintenance"}
	}
}

func (TimelinePolicy) MonthsRemaining(state PlanState) int {
	left := timelineBuildMonths - state.MonthsElapsed()
	if left < 0 {
		return 0
	}
	return left
}

// DriftPolicy stays in catch-up while any group is underweight by more than
// Tolerance and sends the budget to the most underweight one. An empty
// portfolio is treated as balanced.
type DriftPolicy struct {
	Tolerance decimal.Decimal
}

func (DriftPolicy) Name() string { return PolicyDrift }

func (p DriftPolicy) Phase(snap Snapshot, _ PlanState) Phase {
	if !snap.TotalValue.IsPositive() {
		return Phase{Number: 2, Label: "Maintenance"}
	}
	g, ok := snap.MostUnderweight()
	if !ok || !g.Underweight().GreaterThan(p.Tolerance) {
		return Phase{Number: 2, Label: "Maintenance"}
	}
	return Phase{
		Number: 1,
		Label:  "Catch-up: Build " + g.Name,
		Focus:  g.Group,
		Reason: fmt.Sprintf("Underweight by %s%% (current %s%% vs target %s%%)",
			g.Underweight().StringFixed(1), g.Percentage.StringFixed(1), g.Target.StringFixed(0)),
	}
}

func (DriftPolicy) MonthsRemaining(PlanState) int { return -1 }
