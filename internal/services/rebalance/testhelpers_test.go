package rebalance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

type holding struct {
	coin     string
	balance  string
	price    string
	decimals int32
}

// buildSnapshot values holdings and derives percentages the way the snapshot source does.
func buildSnapshot(holdings ...holding) domain.PortfolioSnapshot {
	total := decimal.Zero
	assets := make([]domain.HeldAsset, 0, len(holdings))
	for _, h := range holdings {
		balance := decimal.RequireFromString(h.balance)
		price := decimal.RequireFromString(h.price)
		usd := balance.Mul(price)
		total = total.Add(usd)
		assets = append(assets, domain.HeldAsset{
			CoinType:   h.coin,
			Symbol:     h.coin,
			Balance:    balance,
			BalanceUSD: usd,
			Decimals:   h.decimals,
			Price:      price,
		})
	}
	for i := range assets {
		assets[i].Percentage = assets[i].BalanceUSD.Mul(hundred).Div(total)
	}
	return domain.PortfolioSnapshot{TakenAt: time.Now(), Assets: assets, TotalBalanceUSD: total}
}

func targetsOf(pairs ...any) []domain.TargetAllocation {
	out := make([]domain.TargetAllocation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.TargetAllocation{
			CoinType:         pairs[i].(string),
			TargetPercentage: decimal.RequireFromString(pairs[i+1].(string)),
		})
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
