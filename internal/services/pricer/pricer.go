// Package pricer provides exchange price tables used to value portfolios and resolve swap markets.
package pricer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// Table last prices keyed by exchange symbol (base+quote, e.g. BTCUSDT).
type Table map[string]decimal.Decimal

// Pricer returns the current price table of an exchange.
type Pricer interface {
	Prices(ctx context.Context) (Table, error)
}

// Price returns the price of one unit of pair.From in pair.To, using the inverse market when needed.
func (t Table) Price(pair domain.Pair) (decimal.Decimal, error) {
	if pair.From == pair.To {
		return decimal.NewFromInt(1), nil
	}
	if p, ok := t[pair.Symbol()]; ok && p.IsPositive() {
		return p, nil
	}
	reverse := pair.Reverse()
	if p, ok := t[reverse.Symbol()]; ok && p.IsPositive() {
		return decimal.NewFromInt(1).DivRound(p, 18), nil
	}
	return decimal.Zero, fmt.Errorf("no market for %s", pair.String())
}

// Market returns the listed pair joining the two coins, base first.
// ok is false when neither direction is listed.
func (t Table) Market(from, to string) (pair domain.Pair, direct bool, ok bool) {
	forward := domain.Pair{From: from, To: to}
	if _, listed := t[forward.Symbol()]; listed {
		return forward, true, true
	}
	reverse := forward.Reverse()
	if _, listed := t[reverse.Symbol()]; listed {
		return reverse, false, true
	}
	return domain.Pair{}, false, false
}
