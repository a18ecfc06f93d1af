package invest

import (
	"errors"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// percentPlaces is the precision of reported percentages.
const percentPlaces = 2

var (
	ErrUnknownAsset  = errors.New("unknown asset type")
	ErrNegativeValue = errors.New("value must not be negative")
	ErrInvalidBudget = errors.New("monthly budget must not be negative")
)

var hundred = decimal.NewFromInt(100)

// Holding is the current mark-to-market value of one asset class.
type Holding struct {
	Type         AssetType       `json:"type"`
	Name         string          `json:"name"`
	Platform     string          `json:"platform"`
	CurrentValue decimal.Decimal `json:"current_value"`
}

// Contribution records money put into an asset class. It never changes
// the holding value.
type Contribution struct {
	ID     int64           `json:"id"`
	Type   AssetType       `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Date   core.Date       `json:"date"`
	Notes  string          `json:"notes,omitempty"`
}

func (c Contribution) Validate() error {
	if _, ok := assets[c.Type]; !ok {
		return ErrUnknownAsset
	}
	if !c.Amount.IsPositive() {
		return core.ErrInvalidAmount
	}
	return c.Date.Validate()
}

// PlanConfig is the singleton plan setting. A zero StartDate means the plan
// has not been started.
type PlanConfig struct {
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	StartDate     core.Date       `json:"start_date"`
}

func (c PlanConfig) Validate() error {
	if c.MonthlyBudget.IsNegative() {
		return ErrInvalidBudget
	}
	return nil
}

func (c PlanConfig) Started() bool {
	return !c.StartDate.IsZero()
}

// HoldingShare is a holding with its share of the portfolio.
type HoldingShare struct {
	Holding
	Group      GroupKey        `json:"group"`
	Percentage decimal.Decimal `json:"percentage"`
}

// GroupShare is the current allocation of one group against its target.
type GroupShare struct {
	Group      GroupKey        `json:"group"`
	Name       string          `json:"name"`
	Glyph      string          `json:"glyph"`
	Color      string          `json:"color"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
	Target     decimal.Decimal `json:"target"`
	Drift      decimal.Decimal `json:"drift"`
}

// Underweight is the positive distance below target, or zero.
func (g GroupShare) Underweight() decimal.Decimal {
	if g.Drift.IsNegative() {
		return g.Drift.Neg()
	}
	return decimal.Zero
}

// Snapshot is the portfolio allocation at one point in time.
type Snapshot struct {
	TotalValue  decimal.Decimal `json:"totalValue"`
	Holdings    []HoldingShare  `json:"holdings"`
	Allocations []GroupShare    `json:"allocations"`
}

// NewSnapshot computes holding and group percentages. Every asset of the
// table appears once; missing holdings count as zero. Percentages are rounded
// so that each list sums to exactly 100 when the total is positive, and are
// all zero otherwise.
func NewSnapshot(holdings []Holding) Snapshot {
	values := make(map[AssetType]decimal.Decimal, len(assetOrder))
	meta := make(map[AssetType]Holding, len(holdings))
	for _, h := range holdings {
		if _, ok := assets[h.Type]; !ok {
			continue
		}
		values[h.Type] = values[h.Type].Add(h.CurrentValue)
		meta[h.Type] = h
	}

	snap := Snapshot{TotalValue: decimal.Zero}
	assetValues := make([]decimal.Decimal, len(assetOrder))
	for i, t := range assetOrder {
		assetValues[i] = values[t]
		snap.TotalValue = snap.TotalValue.Add(values[t])
	}

	assetPct := shares(assetValues, snap.TotalValue)
	for i, t := range assetOrder {
		a := assets[t]
		h := meta[t]
		h.Type = t
		h.CurrentValue = assetValues[i]
		if h.Name == "" {
			h.Name = a.Name
		}
		if h.Platform == "" {
			h.Platform = a.Platform
		}
		snap.Holdings = append(snap.Holdings, HoldingShare{Holding: h, Group: a.Group, Percentage: assetPct[i]})
	}

	groupValues := make([]decimal.Decimal, len(groups))
	for i, g := range groups {
		groupValues[i] = decimal.Zero
		for _, m := range g.Members {
			groupValues[i] = groupValues[i].Add(values[m])
		}
	}
	groupPct := shares(groupValues, snap.TotalValue)
	for i, g := range groups {
		snap.Allocations = append(snap.Allocations, GroupShare{
			Group:      g.Key,
			Name:       g.Name,
			Glyph:      g.Glyph,
			Color:      g.Color,
			Value:      groupValues[i],
			Percentage: groupPct[i],
			Target:     g.Target,
			Drift:      groupPct[i].Sub(g.Target),
		})
	}
	return snap
}

// Allocation returns the share of group k.
func (s Snapshot) Allocation(k GroupKey) (GroupShare, bool) {
	for _, a := range s.Allocations {
		if a.Group == k {
			return a, true
		}
	}
	return GroupShare{}, false
}

// MostUnderweight returns the group furthest below its target. Ties go to
// the group listed first.
func (s Snapshot) MostUnderweight() (GroupShare, bool) {
	var best GroupShare
	found := false
	for _, a := range s.Allocations {
		if !a.Drift.IsNegative() {
			continue
		}
		if !found || a.Drift.LessThan(best.Drift) {
			best = a
			found = true
		}
	}
	return best, found
}

// shares converts values to percentages of total using the largest
// remainder method, so the rounded results add up to exactly 100.
func shares(values []decimal.Decimal, total decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	if !total.IsPositive() {
		for i := range out {
			out[i] = decimal.Zero
		}
		return out
	}

	unit := decimal.New(1, -percentPlaces)
	sum := decimal.Zero
	rem := make([]decimal.Decimal, len(values))
	for i, v := range values {
		exact := core.Percent(v, total)
		out[i] = exact.RoundFloor(percentPlaces)
		rem[i] = exact.Sub(out[i])
		sum = sum.Add(out[i])
	}

	for left := hundred.Sub(sum); left.IsPositive(); left = left.Sub(unit) {
		idx := -1
		for i := range rem {
			if idx == -1 || rem[i].GreaterThan(rem[idx]) {
				idx = i
			}
		}
		out[idx] = out[idx].Add(unit)
		rem[idx] = decimal.NewFromInt(-1)
	}
	return out
}
