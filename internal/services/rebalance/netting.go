package rebalance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// Leg netting step in percentage points, before conversion into an asset amount.
type Leg struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Points decimal.Decimal  `json:"points"`
	Kind   domain.TradeKind `json:"kind"`
}

// nettingResult legs in emission order plus the residuals left after the main loop.
type nettingResult struct {
	legs              []Leg
	residualDeficits  []position
	residualSurpluses []position
}

// net runs the bucket/cup algorithm: the largest deficit is paired with the smallest surplus
// until one queue is exhausted, then residuals are resolved through the numeraire.
func net(adjustments []domain.Adjustment, numeraire string) (nettingResult, error) {
	var deficits, surpluses []position
	for _, a := range adjustments {
		if a.CoinType == numeraire {
			continue
		}
		switch {
		case a.IsDeficit():
			deficits = append(deficits, position{coinType: a.CoinType, delta: a.DeltaPercentage})
		case a.IsSurplus():
			surpluses = append(surpluses, position{coinType: a.CoinType, delta: a.DeltaPercentage})
		}
	}

	// most negative first
	sort.SliceStable(deficits, func(i, j int) bool {
		return deficits[i].delta.LessThan(deficits[j].delta)
	})
	// smallest positive first
	sort.SliceStable(surpluses, func(i, j int) bool {
		return surpluses[i].delta.LessThan(surpluses[j].delta)
	})

	buckets := newDeque(deficits)
	cups := newDeque(surpluses)

	var legs []Leg
	for buckets.Len() > 0 && cups.Len() > 0 {
		bucket := buckets.PopFront()
		cup := cups.PopFront()

		magnitude := decimal.Min(bucket.delta.Abs(), cup.delta)
		legs = append(legs, Leg{
			From:   bucket.coinType,
			To:     cup.coinType,
			Points: magnitude,
			Kind:   domain.TradeKindNetting,
		})

		bucket.delta = bucket.delta.Add(magnitude)
		cup.delta = cup.delta.Sub(magnitude)

		if bucket.delta.IsNegative() {
			buckets.PushFront(bucket)
		}
		if cup.delta.IsPositive() {
			cups.PushFront(cup)
		}
	}

	if buckets.Len() > 0 && cups.Len() > 0 {
		return nettingResult{}, fmt.Errorf("netting stopped with %d buckets and %d cups left", buckets.Len(), cups.Len())
	}

	result := nettingResult{
		residualDeficits:  buckets.Remaining(),
		residualSurpluses: cups.Remaining(),
	}

	for _, b := range result.residualDeficits {
		legs = append(legs, Leg{
			From:   b.coinType,
			To:     numeraire,
			Points: b.delta.Abs(),
			Kind:   domain.TradeKindLiquidation,
		})
	}
	for _, c := range result.residualSurpluses {
		legs = append(legs, Leg{
			From:   numeraire,
			To:     c.coinType,
			Points: c.delta,
			Kind:   domain.TradeKindFunding,
		})
	}
	result.legs = legs

	return result, nil
}
