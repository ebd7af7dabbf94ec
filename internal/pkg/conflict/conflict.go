package conflict

import (
	"fmt"

	"github.com/StockPilotApp/StockPilot/app/models"
)

// Strategy is the policy used to reconcile divergent central/store
// quantities into one applied value.
type Strategy string

const (
	UseLowest   Strategy = models.ConflictUseLowest
	UseHighest  Strategy = models.ConflictUseHighest
	UseDatabase Strategy = models.ConflictUseDatabase
	UseStore    Strategy = models.ConflictUseStore
	Average     Strategy = models.ConflictAverage
	Manual      Strategy = models.ConflictManual
)

// Resolution is the outcome of resolving a quantity conflict. NeedsReview
// marks a deferred manual resolution; callers must not apply the quantity
// as a final answer when it is set.
type Resolution struct {
	Quantity    int
	NeedsReview bool
}

// ParseStrategy validates a strategy string from configuration
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case UseLowest, UseHighest, UseDatabase, UseStore, Average, Manual:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict resolution strategy: %q", s)
}

// Resolve maps (central, store, strategy) to the reconciled quantity. Pure
// and deterministic; no side effects, no I/O.
func Resolve(central, store int, strategy Strategy) (Resolution, error) {
	switch strategy {
	case UseLowest:
		return Resolution{Quantity: min(central, store)}, nil
	case UseHighest:
		return Resolution{Quantity: max(central, store)}, nil
	case UseDatabase:
		return Resolution{Quantity: central}, nil
	case UseStore:
		return Resolution{Quantity: store}, nil
	case Average:
		return Resolution{Quantity: floorDiv(central+store, 2)}, nil
	case Manual:
		// Resolution is deferred to a human; the central value is carried
		// for display only.
		return Resolution{Quantity: central, NeedsReview: true}, nil
	}
	return Resolution{}, fmt.Errorf("unknown conflict resolution strategy: %q", strategy)
}

// floorDiv rounds toward negative infinity so averages of negative
// quantities stay consistent with the floor contract.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
