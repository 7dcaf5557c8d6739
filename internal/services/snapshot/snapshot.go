// Package snapshot builds portfolio snapshots from exchange balances and prices.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
)

// DefaultDecimals precision used for coins without an explicit setting.
const DefaultDecimals int32 = 8

const percentagePrecision = 8

var hundred = decimal.NewFromInt(100)

// BalanceLister returns balances of every coin held in a wallet.
type BalanceLister interface {
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Config describes which coins enter the snapshot and how they are valued.
type Config struct {
	Numeraire string
	// Universe restricts the snapshot to these coins, in this order. Zero balances are kept.
	// Empty means every coin with a non-zero balance, in lexical order.
	Universe []string
	// Decimals per-coin precision, DefaultDecimals otherwise.
	Decimals map[string]int32
}

// Source produces immutable portfolio snapshots.
type Source struct {
	balances BalanceLister
	pricer   pricer.Pricer
	cfg      Config
	now      func() time.Time
}

// NewSource creates a snapshot source.
func NewSource(balances BalanceLister, p pricer.Pricer, cfg Config) (*Source, error) {
	if balances == nil {
		return nil, errors.New("balance lister is required")
	}
	if p == nil {
		return nil, errors.New("pricer is required")
	}
	if cfg.Numeraire == "" {
		return nil, errors.New("numeraire is required")
	}
	return &Source{balances: balances, pricer: p, cfg: cfg, now: time.Now}, nil
}

// Snapshot reads balances and prices once and values every coin in the numeraire.
func (s *Source) Snapshot(ctx context.Context) (domain.PortfolioSnapshot, error) {
	balances, err := s.balances.Balances(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, errors.Wrap(err, "failed to read balances")
	}
	table, err := s.pricer.Prices(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, errors.Wrap(err, "failed to read prices")
	}

	coins := s.coins(balances)
	if len(coins) == 0 {
		return domain.PortfolioSnapshot{}, errors.New("wallet holds no coins")
	}

	assets := make([]domain.HeldAsset, 0, len(coins))
	total := decimal.Zero
	for _, coin := range coins {
		price, err := table.Price(domain.Pair{From: coin, To: s.cfg.Numeraire})
		if err != nil {
			return domain.PortfolioSnapshot{}, errors.Wrapf(err, "failed to value %s", coin)
		}
		balance := balances[coin]
		value := balance.Mul(price)
		total = total.Add(value)

		assets = append(assets, domain.HeldAsset{
			CoinType:   coin,
			Symbol:     coin,
			Balance:    balance,
			BalanceUSD: value,
			Decimals:   s.decimals(coin),
			Price:      price,
		})
	}

	if !total.IsPositive() {
		return domain.PortfolioSnapshot{}, errors.New("portfolio value is zero")
	}
	for i := range assets {
		assets[i].Percentage = assets[i].BalanceUSD.Mul(hundred).DivRound(total, percentagePrecision)
	}

	return domain.PortfolioSnapshot{
		TakenAt:         s.now().UTC(),
		Assets:          assets,
		TotalBalanceUSD: total,
	}, nil
}

func (s *Source) coins(balances map[string]decimal.Decimal) []string {
	if len(s.cfg.Universe) > 0 {
		out := make([]string, len(s.cfg.Universe))
		copy(out, s.cfg.Universe)
		return out
	}

	out := make([]string, 0, len(balances))
	for coin, balance := range balances {
		if balance.IsPositive() {
			out = append(out, coin)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Source) decimals(coin string) int32 {
	if d, ok := s.cfg.Decimals[coin]; ok {
		return d
	}
	return DefaultDecimals
}
