package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HeldAsset single asset position of the portfolio at snapshot time.
type HeldAsset struct {
	// CoinType unique asset identifier (exchange ticker or on-chain coin type).
	CoinType string `json:"coinType"`
	// Symbol human readable ticker.
	Symbol string `json:"symbol"`
	// Balance amount held, in asset units.
	Balance decimal.Decimal `json:"balance"`
	// BalanceUSD balance valued in the numeraire.
	BalanceUSD decimal.Decimal `json:"balanceUsd"`
	// Decimals base-unit precision of the asset.
	Decimals int32 `json:"decimals"`
	// Price unit price in the numeraire.
	Price decimal.Decimal `json:"price"`
	// Percentage share of the total portfolio value, 0..100.
	Percentage decimal.Decimal `json:"percentage"`
}

// PortfolioSnapshot point-in-time view of all held assets.
// A snapshot is the single source of truth for one planning run and must not be mutated.
type PortfolioSnapshot struct {
	TakenAt         time.Time       `json:"takenAt"`
	Assets          []HeldAsset     `json:"assets"`
	TotalBalanceUSD decimal.Decimal `json:"totalBalanceUsd"`
}

// Asset looks up a held asset by coin type.
func (s PortfolioSnapshot) Asset(coinType string) (HeldAsset, bool) {
	for _, a := range s.Assets {
		if a.CoinType == coinType {
			return a, true
		}
	}
	return HeldAsset{}, false
}

// CoinTypes returns coin types in snapshot order.
func (s PortfolioSnapshot) CoinTypes() []string {
	out := make([]string, 0, len(s.Assets))
	for _, a := range s.Assets {
		out = append(out, a.CoinType)
	}
	return out
}

// Clone returns a deep copy, so callers can hand out the snapshot without sharing the asset slice.
func (s PortfolioSnapshot) Clone() PortfolioSnapshot {
	assets := make([]HeldAsset, len(s.Assets))
	copy(assets, s.Assets)
	return PortfolioSnapshot{
		TakenAt:         s.TakenAt,
		Assets:          assets,
		TotalBalanceUSD: s.TotalBalanceUSD,
	}
}
