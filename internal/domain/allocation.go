package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TargetAllocation desired weight of a single asset in percent.
// Tags match the tool-call payload produced by the upstream weight supplier.
type TargetAllocation struct {
	CoinType         string          `json:"coinType" yaml:"coinType"`
	TargetPercentage decimal.Decimal `json:"percentage" yaml:"percentage"`
}

// String returns a human-readable representation.
func (t TargetAllocation) String() string {
	return fmt.Sprintf("%s=%s%%", t.CoinType, t.TargetPercentage.String())
}

// SumPercentages returns the sum of all target percentages.
func SumPercentages(targets []TargetAllocation) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range targets {
		sum = sum.Add(t.TargetPercentage)
	}
	return sum
}

// Adjustment per-asset percentage-point move required to reach the target.
// Negative delta means the asset is over-allocated (sell), positive means under-allocated (buy).
type Adjustment struct {
	CoinType          string          `json:"coinType"`
	DeltaPercentage   decimal.Decimal `json:"deltaPercentage"`
	CurrentPercentage decimal.Decimal `json:"currentPercentage"`
	Balance           decimal.Decimal `json:"balance"`
	Decimals          int32           `json:"decimals"`
}

// IsDeficit reports whether the asset must be sold.
func (a Adjustment) IsDeficit() bool {
	return a.DeltaPercentage.IsNegative()
}

// IsSurplus reports whether the asset must be bought.
func (a Adjustment) IsSurplus() bool {
	return a.DeltaPercentage.IsPositive()
}
