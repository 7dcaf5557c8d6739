package rebalance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Apportionment policy for distributing rounding drift after snapping to granularity.
type Apportionment string

const (
	// ApportionLast adds the whole drift to the last entry in input order.
	ApportionLast Apportionment = "last"
	// ApportionLargestRemainder hands out drift in granularity steps to the entries
	// that lost the most to rounding.
	ApportionLargestRemainder Apportionment = "largest_remainder"
)

// IsValid checks if the Apportionment value is valid.
func (a Apportionment) IsValid() bool {
	return a == ApportionLast || a == ApportionLargestRemainder
}

// Sizing policy for converting percentage points into asset amounts.
type Sizing string

const (
	// SizingBalance points are taken as a percent of the sizing asset's own snapshot balance.
	// Funding legs use the destination asset's balance as the sizing asset.
	SizingBalance Sizing = "balance"
	// SizingPortfolio points are taken as a percent of total portfolio value and
	// converted into source units with the source price.
	SizingPortfolio Sizing = "portfolio"
)

// IsValid checks if the Sizing value is valid.
func (s Sizing) IsValid() bool {
	return s == SizingBalance || s == SizingPortfolio
}

var (
	defaultGranularity   = decimal.NewFromInt(5)
	defaultDustThreshold = decimal.NewFromInt(2)
)

// Config planner settings.
type Config struct {
	// Numeraire coin type used for residual funding and absorption.
	Numeraire string
	// Granularity percentage step normalized targets snap to.
	Granularity decimal.Decimal
	// DustThreshold deltas with smaller magnitude are ignored.
	DustThreshold decimal.Decimal
	Apportionment Apportionment
	Sizing        Sizing
}

// DefaultConfig returns the default planner configuration for the numeraire.
func DefaultConfig(numeraire string) Config {
	return Config{
		Numeraire:     numeraire,
		Granularity:   defaultGranularity,
		DustThreshold: defaultDustThreshold,
		Apportionment: ApportionLast,
		Sizing:        SizingBalance,
	}
}

func (c Config) validate() error {
	if c.Numeraire == "" {
		return fmt.Errorf("numeraire is required")
	}
	if !c.Granularity.IsPositive() || c.Granularity.GreaterThan(hundred) {
		return fmt.Errorf("granularity must be in (0, 100], got %s", c.Granularity.String())
	}
	if c.DustThreshold.IsNegative() {
		return fmt.Errorf("dust threshold must not be negative, got %s", c.DustThreshold.String())
	}
	if !c.Apportionment.IsValid() {
		return fmt.Errorf("unsupported apportionment: %s", c.Apportionment)
	}
	if !c.Sizing.IsValid() {
		return fmt.Errorf("unsupported sizing: %s", c.Sizing)
	}
	return nil
}
