package rebalance

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// emitter converts legs into swap instructions against the planning snapshot.
type emitter struct {
	snapshot  domain.PortfolioSnapshot
	numeraire string
	sizing    Sizing
}

// emit keeps leg order. Amounts are truncated to the source precision and clamped to the
// source snapshot balance, except funding legs, which are checked for numeraire sufficiency by the caller.
// Legs that truncate to zero are returned as skipped.
func (e emitter) emit(legs []Leg) (instructions []domain.TradeInstruction, skipped []Leg) {
	for _, leg := range legs {
		source, _ := e.snapshot.Asset(leg.From)

		amount := e.size(leg, source).Truncate(source.Decimals)
		if leg.Kind != domain.TradeKindFunding && amount.GreaterThan(source.Balance) {
			amount = source.Balance.Truncate(source.Decimals)
		}
		if !amount.IsPositive() {
			skipped = append(skipped, leg)
			continue
		}

		instructions = append(instructions, domain.TradeInstruction{
			FromCoin:    leg.From,
			ToCoin:      leg.To,
			InputAmount: amount,
			Percentage:  leg.Points,
			Kind:        leg.Kind,
		})
	}

	return instructions, skipped
}

func (e emitter) size(leg Leg, source domain.HeldAsset) decimal.Decimal {
	switch e.sizing {
	case SizingPortfolio:
		price := source.Price
		if leg.From == e.numeraire && !price.IsPositive() {
			price = decimal.NewFromInt(1)
		}
		if !price.IsPositive() {
			return decimal.Zero
		}
		value := e.snapshot.TotalBalanceUSD.Mul(leg.Points).Div(hundred)
		return value.Div(price)
	default:
		// funding is sized from the destination balance as a proxy for the amount needed
		reference := source
		if leg.Kind == domain.TradeKindFunding {
			reference, _ = e.snapshot.Asset(leg.To)
		}
		return reference.Balance.Mul(leg.Points).Div(hundred)
	}
}
