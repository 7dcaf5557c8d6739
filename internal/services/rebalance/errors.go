package rebalance

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

var (
	// ErrAllocationMismatch target coin types differ from held coin types.
	ErrAllocationMismatch = errors.New("allocation mismatch")
	// ErrNormalizationAnomaly target allocation cannot be normalized to 100%.
	ErrNormalizationAnomaly = errors.New("normalization anomaly")
	// ErrInsufficientNumeraire residual funding exceeds the numeraire balance.
	ErrInsufficientNumeraire = errors.New("insufficient numeraire")
)

// AllocationMismatchError names the coin types that break the held/target universe equality.
type AllocationMismatchError struct {
	// MissingTargets held coin types without a target entry.
	MissingTargets []string
	// UnheldTargets target coin types that are not held.
	UnheldTargets []string
	// Duplicates coin types listed more than once in the target allocation.
	Duplicates []string
}

func (e *AllocationMismatchError) Error() string {
	parts := make([]string, 0, 3)
	if len(e.MissingTargets) > 0 {
		parts = append(parts, fmt.Sprintf("no target for held [%s]", strings.Join(e.MissingTargets, ", ")))
	}
	if len(e.UnheldTargets) > 0 {
		parts = append(parts, fmt.Sprintf("target for unheld [%s]", strings.Join(e.UnheldTargets, ", ")))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate targets [%s]", strings.Join(e.Duplicates, ", ")))
	}
	return fmt.Sprintf("%s: %s", ErrAllocationMismatch.Error(), strings.Join(parts, "; "))
}

func (e *AllocationMismatchError) Unwrap() error {
	return ErrAllocationMismatch
}

func (e *AllocationMismatchError) empty() bool {
	return len(e.MissingTargets) == 0 && len(e.UnheldTargets) == 0 && len(e.Duplicates) == 0
}

// NormalizationAnomalyError target allocation that violates a normalization invariant.
type NormalizationAnomalyError struct {
	Reason  string
	Targets []domain.TargetAllocation
}

func (e *NormalizationAnomalyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNormalizationAnomaly.Error(), e.Reason)
}

func (e *NormalizationAnomalyError) Unwrap() error {
	return ErrNormalizationAnomaly
}

// InsufficientNumeraireError residual cups need more numeraire than the snapshot holds.
type InsufficientNumeraireError struct {
	Numeraire string
	Required  decimal.Decimal
	Available decimal.Decimal
	// Funding the funding instructions that produced the requirement.
	Funding []domain.TradeInstruction
}

func (e *InsufficientNumeraireError) Error() string {
	return fmt.Sprintf("%s: need %s %s, have %s",
		ErrInsufficientNumeraire.Error(), e.Required.String(), e.Numeraire, e.Available.String())
}

func (e *InsufficientNumeraireError) Unwrap() error {
	return ErrInsufficientNumeraire
}
