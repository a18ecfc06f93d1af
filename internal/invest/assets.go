// Package invest implements the 50/40/10 allocation engine: the static asset
// table, current-vs-target snapshots, phase policies, monthly contribution
// plans and the derived action items.
package invest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AssetType is the closed set of tracked asset classes.
type AssetType string

const (
	EmergencyFund       AssetType = "emergency_fund"
	PensionFund         AssetType = "pension_fund"
	IndonesianEquity    AssetType = "indonesian_equity"
	InternationalEquity AssetType = "international_equity"
	Gold                AssetType = "gold"
)

// GroupKey identifies an allocation bucket.
type GroupKey string

const (
	GroupIndonesian    GroupKey = "indonesian"
	GroupInternational GroupKey = "international"
	GroupGold          GroupKey = "gold"
)

// Asset is the display and grouping metadata of an asset class.
type Asset struct {
	Type      AssetType `json:"type"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Glyph     string    `json:"glyph"`
	Color     string    `json:"color"`
	Group     GroupKey  `json:"group"`
	Platform  string    `json:"platform"`
}

// Group is an allocation bucket with its target share of the portfolio.
type Group struct {
	Key    GroupKey `json:"group"`
	Name   string   `json:"name"`
	Glyph  string   `json:"glyph"`
	Color  string   `json:"color"`
	Target decimal.Decimal
	// Members in display order; Contribute receives new money for the group.
	Members    []AssetType
	Contribute AssetType
}

var assetOrder = []AssetType{EmergencyFund, PensionFund, IndonesianEquity, InternationalEquity, Gold}

var assets = map[AssetType]Asset{
	EmergencyFund: {
		Type: EmergencyFund, Name: "Emergency Fund", ShortName: "Emergency",
		Glyph: "🛡️", Color: "#6B7280", Group: GroupIndonesian, Platform: "Money market fund",
	},
	PensionFund: {
		Type: PensionFund, Name: "Pension Fund", ShortName: "Pension",
		Glyph: "🏦", Color: "#8B5CF6", Group: GroupIndonesian, Platform: "DPLK",
	},
	IndonesianEquity: {
		Type: IndonesianEquity, Name: "Indonesian Equity", ShortName: "Indo Equity",
		Glyph: "📈", Color: "#EF4444", Group: GroupIndonesian, Platform: "Local broker",
	},
	InternationalEquity: {
		Type: InternationalEquity, Name: "International", ShortName: "International",
		Glyph: "🌍", Color: "#3B82F6", Group: GroupInternational, Platform: "Gotrade",
	},
	Gold: {
		Type: Gold, Name: "Gold", ShortName: "Gold",
		Glyph: "🥇", Color: "#F59E0B", Group: GroupGold, Platform: "Digital gold",
	},
}

var groups = []Group{
	{
		Key: GroupIndonesian, Name: "Indonesian", Glyph: "🇮🇩", Color: "#EF4444",
		Target:     decimal.NewFromInt(50),
		Members:    []AssetType{EmergencyFund, PensionFund, IndonesianEquity},
		Contribute: IndonesianEquity,
	},
	{
		Key: GroupInternational, Name: "International", Glyph: "🌍", Color: "#3B82F6",
		Target:     decimal.NewFromInt(40),
		Members:    []AssetType{InternationalEquity},
		Contribute: InternationalEquity,
	},
	{
		Key: GroupGold, Name: "Gold", Glyph: "🥇", Color: "#F59E0B",
		Target:     decimal.NewFromInt(10),
		Members:    []AssetType{Gold},
		Contribute: Gold,
	},
}

// Assets returns the asset table in display order.
func Assets() []Asset {
	out := make([]Asset, 0, len(assetOrder))
	for _, t := range assetOrder {
		out = append(out, assets[t])
	}
	return out
}

// LookupAsset returns the metadata of t.
func LookupAsset(t AssetType) (Asset, bool) {
	a, ok := assets[t]
	return a, ok
}

// ParseAssetType validates a wire value against the asset table.
func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := assets[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAsset, s)
	}
	return t, nil
}

// Groups returns the allocation groups in display order.
func Groups() []Group {
	out := make([]Group, len(groups))
	copy(out, groups)
	return out
}

// LookupGroup returns the group with the given key.
func LookupGroup(k GroupKey) (Group, bool) {
	for _, g := range groups {
		if g.Key == k {
			return g, true
		}
	}
	return Group{}, false
}

// largestTarget is the group that absorbs rounding remainders.
func largestTarget() GroupKey {
	best := groups[0]
	for _, g := range groups[1:] {
		if g.Target.GreaterThan(best.Target) {
			best = g
		}
	}
	return best.Key
}
