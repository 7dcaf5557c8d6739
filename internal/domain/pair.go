// Package domain defines core data structures used throughout the rebalancer.
package domain

import "fmt"

// Pair exchange market between two coins.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// Reverse returns the pair with base and quote swapped.
func (p Pair) Reverse() Pair {
	return Pair{From: p.To, To: p.From}
}
