package rebalance

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// ComputeAdjustments derives per-asset deltas (target minus current) in snapshot order.
// Deltas below dustThreshold in magnitude are dropped, as is the numeraire regardless of its delta.
func ComputeAdjustments(snapshot domain.PortfolioSnapshot, normalized []domain.TargetAllocation,
	dustThreshold decimal.Decimal, numeraire string) []domain.Adjustment {

	targets := make(map[string]decimal.Decimal, len(normalized))
	for _, t := range normalized {
		targets[t.CoinType] = t.TargetPercentage
	}

	adjustments := make([]domain.Adjustment, 0, len(snapshot.Assets))
	for _, asset := range snapshot.Assets {
		target, ok := targets[asset.CoinType]
		if !ok {
			continue
		}
		if asset.CoinType == numeraire {
			continue
		}

		delta := target.Sub(asset.Percentage)
		if delta.Abs().LessThan(dustThreshold) {
			continue
		}

		adjustments = append(adjustments, domain.Adjustment{
			CoinType:          asset.CoinType,
			DeltaPercentage:   delta,
			CurrentPercentage: asset.Percentage,
			Balance:           asset.Balance,
			Decimals:          asset.Decimals,
		})
	}

	return adjustments
}
