// Package trader executes single-hop swap instructions on an exchange or a simulated wallet.
package trader

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
)

// ErrNoMarket is returned when no direct market joins the two coins of an instruction.
var ErrNoMarket = errors.New("no direct market")

// order is an exchange order derived from a swap instruction.
// A swap FROM->TO sells FROM on market FROM/TO or spends FROM as quote on market TO/FROM.
type order struct {
	market domain.Pair
	// sell is true when FROM is the base asset of the market.
	sell   bool
	amount decimal.Decimal
}

func resolveOrder(ctx context.Context, p pricer.Pricer, instr domain.TradeInstruction) (order, error) {
	if instr.FromCoin == instr.ToCoin {
		return order{}, errors.Errorf("cannot swap %s into itself", instr.FromCoin)
	}
	if !instr.InputAmount.IsPositive() {
		return order{}, errors.Errorf("swap amount must be positive, got %s", instr.InputAmount.String())
	}

	table, err := p.Prices(ctx)
	if err != nil {
		return order{}, errors.Wrap(err, "failed to load markets")
	}

	market, direct, ok := table.Market(instr.FromCoin, instr.ToCoin)
	if !ok {
		return order{}, errors.Wrapf(ErrNoMarket, "%s -> %s", instr.FromCoin, instr.ToCoin)
	}

	return order{market: market, sell: direct, amount: instr.InputAmount}, nil
}
