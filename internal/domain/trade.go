package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeInstruction single swap request produced by the planner.
type TradeInstruction struct {
	// FromCoin asset to spend.
	FromCoin string `json:"fromCoin"`
	// ToCoin asset to receive.
	ToCoin string `json:"toCoin"`
	// InputAmount quantity of FromCoin to spend, truncated to FromCoin precision.
	InputAmount decimal.Decimal `json:"inputAmount"`
	// Percentage percentage points of the portfolio moved by this trade.
	Percentage decimal.Decimal `json:"percentage"`
	// Kind netting, liquidation or funding.
	Kind TradeKind `json:"kind"`
}

// String returns a human-readable string representation.
func (t TradeInstruction) String() string {
	return fmt.Sprintf("%s %s -> %s amount: %s (%s pp)",
		t.Kind.String(), t.FromCoin, t.ToCoin, t.InputAmount.String(), t.Percentage.String())
}
