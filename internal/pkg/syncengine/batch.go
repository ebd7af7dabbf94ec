package syncengine

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
)

// Batch operation types
const (
	BatchBulkInventoryUpdate = "bulk_inventory_update"
	BatchBulkProductSync     = "bulk_product_sync"
	BatchInitialSync         = "initial_sync"
)

// BatchOperation describes a bulk fan-out over (product, store) pairs.
// It is a fan-out unit, not an atomic transaction.
type BatchOperation struct {
	Type       string
	StoreID    uint   // limit scope to one store; 0 = all eligible stores
	ProductIDs []uint // limit scope to these products; empty = per-type default
}

// BatchResult accounts per-unit success and failure. Completion means "all
// units attempted", not "all units succeeded".
type BatchResult struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Coalesced int      `json:"coalesced"`
	Errors    []string `json:"errors,omitempty"`
}

type batchUnit struct {
	productID uint
	storeID   uint
}

// RunBatch fans the operation out into one orchestration per (product,
// store) pair in scope. One unit's failure never aborts the remaining units.
func (e *Engine) RunBatch(ctx context.Context, op BatchOperation) (*BatchResult, error) {
	units, err := e.expandBatch(op)
	if err != nil {
		return nil, err
	}

	log.Infof("[SyncEngine] Running batch %s over %d units", op.Type, len(units))

	result := &BatchResult{}
	for _, unit := range units {
		result.Attempted++

		res, err := e.SyncMapping(ctx, unit.productID, unit.storeID)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %d store %d: %v", unit.productID, unit.storeID, err))
		case res.Coalesced():
			result.Coalesced++
		case res.Outcome == OutcomeFailed:
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %d store %d: %s", unit.productID, unit.storeID, res.Error))
		default:
			result.Succeeded++
		}
	}

	log.Infof("[SyncEngine] Batch %s finished: %d attempted, %d succeeded, %d failed, %d coalesced",
		op.Type, result.Attempted, result.Succeeded, result.Failed, result.Coalesced)
	return result, nil
}

// expandBatch resolves the operation's scope into concrete sync units
func (e *Engine) expandBatch(op BatchOperation) ([]batchUnit, error) {
	switch op.Type {
	case BatchBulkInventoryUpdate, BatchBulkProductSync, BatchInitialSync:
	default:
		return nil, fmt.Errorf("unknown batch operation type: %q", op.Type)
	}

	var units []batchUnit

	if op.StoreID != 0 {
		// One store: either the named products or every mapping of the store
		if len(op.ProductIDs) > 0 {
			for _, pid := range op.ProductIDs {
				units = append(units, batchUnit{productID: pid, storeID: op.StoreID})
			}
			return units, nil
		}
		mappings, err := e.mappings.ListByStore(op.StoreID)
		if err != nil {
			return nil, fmt.Errorf("failed to expand batch over store %d: %w", op.StoreID, err)
		}
		for _, m := range mappings {
			units = append(units, batchUnit{productID: m.ProductID, storeID: m.StoreID})
		}
		return units, nil
	}

	if len(op.ProductIDs) == 0 {
		return nil, fmt.Errorf("batch operation %s needs a store or product scope", op.Type)
	}

	// Named products across every eligible store
	stores, err := e.stores.GetActiveSyncEnabled()
	if err != nil {
		return nil, fmt.Errorf("failed to expand batch over stores: %w", err)
	}
	for _, pid := range op.ProductIDs {
		for _, s := range stores {
			units = append(units, batchUnit{productID: pid, storeID: s.ID})
		}
	}
	return units, nil
}
