package pricer

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const crossPrecision = 18

// StaticPricer serves a fixed price table quoted in a single numeraire.
// Used for simulation when no exchange is reachable.
type StaticPricer struct {
	mu    sync.RWMutex
	table Table
}

// NewStaticPricer builds a table of <coin><numeraire> symbols from per-coin prices,
// plus one cross market for every pair of priced coins (lexically smaller coin as base).
func NewStaticPricer(numeraire string, prices map[string]decimal.Decimal) *StaticPricer {
	coins := make([]string, 0, len(prices))
	table := make(Table, len(prices))
	for coin, price := range prices {
		if coin == numeraire || !price.IsPositive() {
			continue
		}
		coins = append(coins, coin)
		pair := domain.Pair{From: coin, To: numeraire}
		table[pair.Symbol()] = price
	}

	sort.Strings(coins)
	for i, base := range coins {
		for _, quote := range coins[i+1:] {
			pair := domain.Pair{From: base, To: quote}
			table[pair.Symbol()] = prices[base].DivRound(prices[quote], crossPrecision)
		}
	}
	return &StaticPricer{table: table}
}

// Prices returns a copy of the table.
func (p *StaticPricer) Prices(_ context.Context) (Table, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(Table, len(p.table))
	for k, v := range p.table {
		out[k] = v
	}
	return out, nil
}

// Set overrides the price of a symbol. Cross markets derived at construction are left as is.
func (p *StaticPricer) Set(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table[symbol] = price
}
