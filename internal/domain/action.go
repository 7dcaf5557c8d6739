package domain

import "fmt"

// TradeKind describes why a trade instruction was planned.
type TradeKind int

const (
	// TradeKindNetting deficit asset swapped directly into a surplus asset.
	TradeKindNetting TradeKind = iota
	// TradeKindLiquidation residual deficit sold into the numeraire.
	TradeKindLiquidation
	// TradeKindFunding residual surplus bought with the numeraire.
	TradeKindFunding
)

// kind string constants to avoid magic strings
const (
	tradeKindStringNetting     = "netting"
	tradeKindStringLiquidation = "liquidation"
	tradeKindStringFunding     = "funding"
)

// String returns the string representation of the kind
func (k TradeKind) String() string {
	switch k {
	case TradeKindNetting:
		return tradeKindStringNetting
	case TradeKindLiquidation:
		return tradeKindStringLiquidation
	case TradeKindFunding:
		return tradeKindStringFunding
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its string form.
func (k TradeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes the kind from its string form.
func (k *TradeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case tradeKindStringNetting:
		*k = TradeKindNetting
	case tradeKindStringLiquidation:
		*k = TradeKindLiquidation
	case tradeKindStringFunding:
		*k = TradeKindFunding
	default:
		return fmt.Errorf("unknown trade kind: %s", string(text))
	}
	return nil
}

