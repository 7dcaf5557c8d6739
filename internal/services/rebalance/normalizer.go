package rebalance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// rescalePrecision digits kept when rescaling, well below any granularity step.
const rescalePrecision = 16

var hundred = decimal.NewFromInt(100)

// Normalize rescales targets to sum to exactly 100 and snaps them to granularity.
// A sum of exactly 100 passes through unchanged. Rounding drift is apportioned according to mode;
// when the last entry cannot absorb it, largest remainder is used instead.
func Normalize(targets []domain.TargetAllocation, granularity decimal.Decimal, mode Apportionment) ([]domain.TargetAllocation, error) {
	if len(targets) == 0 {
		return nil, &NormalizationAnomalyError{Reason: "empty target allocation"}
	}
	if !granularity.IsPositive() {
		return nil, &NormalizationAnomalyError{
			Reason:  fmt.Sprintf("granularity must be positive, got %s", granularity.String()),
			Targets: targets,
		}
	}
	for _, t := range targets {
		if t.TargetPercentage.IsNegative() {
			return nil, &NormalizationAnomalyError{
				Reason:  fmt.Sprintf("negative target for %s: %s", t.CoinType, t.TargetPercentage.String()),
				Targets: targets,
			}
		}
	}

	sum := domain.SumPercentages(targets)
	if !sum.IsPositive() {
		return nil, &NormalizationAnomalyError{Reason: "target percentages sum to zero", Targets: targets}
	}

	out := make([]domain.TargetAllocation, len(targets))
	copy(out, targets)
	if sum.Equal(hundred) {
		return out, nil
	}

	scaled := make([]decimal.Decimal, len(targets))
	for i, t := range targets {
		scaled[i] = t.TargetPercentage.Mul(hundred).DivRound(sum, rescalePrecision)
	}

	switch mode {
	case ApportionLargestRemainder:
		apportionLargestRemainder(out, scaled, granularity)
	default:
		apportionLast(out, scaled, granularity)
		// many small weights can round up past 100 and leave the last entry negative
		if !inRange(out) {
			apportionLargestRemainder(out, scaled, granularity)
		}
	}

	for _, t := range out {
		if t.TargetPercentage.IsNegative() || t.TargetPercentage.GreaterThan(hundred) {
			return nil, &NormalizationAnomalyError{
				Reason:  fmt.Sprintf("apportioned target for %s out of range: %s", t.CoinType, t.TargetPercentage.String()),
				Targets: targets,
			}
		}
	}
	if total := domain.SumPercentages(out); !total.Equal(hundred) {
		return nil, &NormalizationAnomalyError{
			Reason:  fmt.Sprintf("normalized sum is %s", total.String()),
			Targets: targets,
		}
	}

	return out, nil
}

func inRange(targets []domain.TargetAllocation) bool {
	for _, t := range targets {
		if t.TargetPercentage.IsNegative() || t.TargetPercentage.GreaterThan(hundred) {
			return false
		}
	}
	return true
}

// snapToGranularity rounds v to the nearest multiple of g, halves away from zero.
func snapToGranularity(v, g decimal.Decimal) decimal.Decimal {
	return v.Div(g).Round(0).Mul(g)
}

func apportionLast(out []domain.TargetAllocation, scaled []decimal.Decimal, g decimal.Decimal) {
	rounded := decimal.Zero
	for i := range out {
		out[i].TargetPercentage = snapToGranularity(scaled[i], g)
		rounded = rounded.Add(out[i].TargetPercentage)
	}
	last := len(out) - 1
	out[last].TargetPercentage = out[last].TargetPercentage.Add(hundred.Sub(rounded))
}

func apportionLargestRemainder(out []domain.TargetAllocation, scaled []decimal.Decimal, g decimal.Decimal) {
	floored := decimal.Zero
	residuals := make([]decimal.Decimal, len(out))
	for i := range out {
		f := scaled[i].Div(g).Floor().Mul(g)
		out[i].TargetPercentage = f
		residuals[i] = scaled[i].Sub(f)
		floored = floored.Add(f)
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return residuals[order[a]].GreaterThan(residuals[order[b]])
	})

	drift := hundred.Sub(floored)
	steps := int(drift.Div(g).Floor().IntPart())
	for k := 0; k < steps; k++ {
		idx := order[k%len(order)]
		out[idx].TargetPercentage = out[idx].TargetPercentage.Add(g)
	}

	// granularity that does not divide 100 leaves a sub-step remainder
	if leftover := drift.Sub(g.Mul(decimal.NewFromInt(int64(steps)))); !leftover.IsZero() {
		idx := order[steps%len(order)]
		out[idx].TargetPercentage = out[idx].TargetPercentage.Add(leftover)
	}
}
