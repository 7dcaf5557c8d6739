// Package rebalance plans the swaps that move a portfolio toward a target allocation.
//
// Planning is a pure function of one immutable snapshot and one target allocation:
// validate the asset universe, normalize targets to 100%, compute deltas, net deficits
// (buckets) against surpluses (cups) and resolve the residual through the numeraire.
// Amounts are computed against the snapshot only; balances are not refreshed between
// instructions, so executors must run the plan in order.
package rebalance

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// Plan planner output for one run.
type Plan struct {
	Numeraire    string                    `json:"numeraire"`
	Normalized   []domain.TargetAllocation `json:"normalized"`
	Adjustments  []domain.Adjustment       `json:"adjustments"`
	Legs         []Leg                     `json:"legs"`
	Instructions []domain.TradeInstruction `json:"instructions"`
	// Skipped legs whose amount truncated to zero.
	Skipped []Leg `json:"skipped,omitempty"`
}

// IsEmpty reports whether the plan has nothing to execute.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Instructions) == 0
}

// Planner computes rebalance plans.
type Planner struct {
	cfg Config
}

// NewPlanner returns a planner for the configuration.
func NewPlanner(cfg Config) (*Planner, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid planner config")
	}
	return &Planner{cfg: cfg}, nil
}

// Config returns the planner configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// PlanRebalance computes the ordered trade instructions for the snapshot and target allocation.
// Validation and normalization errors are returned before anything is planned.
func (p *Planner) PlanRebalance(snapshot domain.PortfolioSnapshot, targets []domain.TargetAllocation) (*Plan, error) {
	if err := ValidateAllocation(snapshot.Assets, targets); err != nil {
		return nil, err
	}

	normalized, err := Normalize(targets, p.cfg.Granularity, p.cfg.Apportionment)
	if err != nil {
		return nil, err
	}

	adjustments := ComputeAdjustments(snapshot, normalized, p.cfg.DustThreshold, p.cfg.Numeraire)

	netted, err := net(adjustments, p.cfg.Numeraire)
	if err != nil {
		return nil, errors.Wrap(err, "netting invariant violated")
	}

	e := emitter{snapshot: snapshot, numeraire: p.cfg.Numeraire, sizing: p.cfg.Sizing}
	instructions, skipped := e.emit(netted.legs)

	if err := p.checkNumeraire(snapshot, instructions); err != nil {
		return nil, err
	}

	return &Plan{
		Numeraire:    p.cfg.Numeraire,
		Normalized:   normalized,
		Adjustments:  adjustments,
		Legs:         netted.legs,
		Instructions: instructions,
		Skipped:      skipped,
	}, nil
}

// checkNumeraire fails when funding legs together spend more numeraire than the snapshot holds.
func (p *Planner) checkNumeraire(snapshot domain.PortfolioSnapshot, instructions []domain.TradeInstruction) error {
	required := decimal.Zero
	var funding []domain.TradeInstruction
	for _, in := range instructions {
		if in.Kind != domain.TradeKindFunding {
			continue
		}
		required = required.Add(in.InputAmount)
		funding = append(funding, in)
	}
	if required.IsZero() {
		return nil
	}

	numeraire, _ := snapshot.Asset(p.cfg.Numeraire)
	if required.GreaterThan(numeraire.Balance) {
		return &InsufficientNumeraireError{
			Numeraire: p.cfg.Numeraire,
			Required:  required,
			Available: numeraire.Balance,
			Funding:   funding,
		}
	}
	return nil
}
