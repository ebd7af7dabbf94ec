package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/StockPilotApp/StockPilot/app/models"
	"github.com/StockPilotApp/StockPilot/app/repository"
	"github.com/StockPilotApp/StockPilot/internal/pkg/conflict"
	"github.com/StockPilotApp/StockPilot/internal/pkg/retry"
	"github.com/StockPilotApp/StockPilot/internal/pkg/shopclient"
)

// Sync outcome statuses reported per (product, store) unit
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeNeedsReview = "needs_review"
	OutcomeCoalesced   = "coalesced"
	OutcomeSkipped     = "skipped"
)

// Result is the outcome of one orchestration cycle for a single mapping
type Result struct {
	ProductID  uint   `json:"product_id"`
	StoreID    uint   `json:"store_id"`
	Outcome    string `json:"outcome"`
	AppliedQty int    `json:"applied_qty,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Coalesced reports whether this cycle was a no-op duplicate of an in-flight one
func (r *Result) Coalesced() bool {
	return r.Outcome == OutcomeCoalesced
}

// Engine drives per-SKU, per-store reconciliation and owns the sync-status
// state machine on StoreMapping.
type Engine struct {
	stores    repository.StoreRepository
	products  repository.ProductRepository
	mappings  repository.StoreMappingRepository
	client    shopclient.Client
	locker    Locker
	retryOpts retry.Options
}

// NewEngine creates a sync engine over the given collaborators
func NewEngine(repos *repository.Repositories, client shopclient.Client, locker Locker) *Engine {
	return &Engine{
		stores:    repos.Store,
		products:  repos.Product,
		mappings:  repos.StoreMapping,
		client:    client,
		locker:    locker,
		retryOpts: retry.DefaultOptions(),
	}
}

// SetRetryOptions overrides the retry policy for outward storefront calls
func (e *Engine) SetRetryOptions(opts retry.Options) {
	e.retryOpts = opts
}

func lockKey(productID, storeID uint) string {
	return fmt.Sprintf("%d:%d", productID, storeID)
}

// SyncMapping runs one reconciliation cycle for a (product, store) pair.
// The per-key lock plus the conditional status transition guarantee exactly
// one outstanding attempt per mapping: a concurrent duplicate is coalesced,
// never raced.
func (e *Engine) SyncMapping(ctx context.Context, productID, storeID uint) (*Result, error) {
	result := &Result{ProductID: productID, StoreID: storeID}

	store, err := e.stores.GetByID(storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load store %d: %w", storeID, err)
	}
	if !store.IsActive || !store.SyncEnabled {
		log.Debugf("[SyncEngine] Store %d (%s) not eligible for sync, skipping product %d", storeID, store.Domain, productID)
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	product, err := e.products.GetByID(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	mapping, err := e.mappings.GetByPair(productID, storeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		mapping = &models.StoreMapping{
			ProductID:  productID,
			StoreID:    storeID,
			SyncStatus: models.SyncStatusPending,
		}
		if err := e.mappings.Create(mapping); err != nil {
			return nil, fmt.Errorf("failed to create mapping for product %d store %d: %w", productID, storeID, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load mapping for product %d store %d: %w", productID, storeID, err)
	}

	token, acquired, err := e.locker.Acquire(ctx, lockKey(productID, storeID))
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Infof("[SyncEngine] Sync for product %d store %d already in flight, coalescing", productID, storeID)
		result.Outcome = OutcomeCoalesced
		return result, nil
	}
	defer func() {
		if err := e.locker.Release(ctx, lockKey(productID, storeID), token); err != nil {
			log.Errorf("[SyncEngine] Failed to release sync lock for product %d store %d: %v", productID, storeID, err)
		}
	}()

	claimed, err := e.mappings.BeginSync(mapping.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim mapping %d: %w", mapping.ID, err)
	}
	if !claimed {
		result.Outcome = OutcomeCoalesced
		return result, nil
	}

	return e.applyMapping(ctx, product, store, mapping, result)
}

// applyMapping resolves the conflict and pushes the quantity to the store.
// The mapping is already claimed (in_progress) when this runs, so every exit
// must leave a terminal status behind: an in_progress mapping coalesces all
// future attempts and would deadlock the pair forever.
func (e *Engine) applyMapping(ctx context.Context, product *models.Product, store *models.Store, mapping *models.StoreMapping, result *Result) (_ *Result, err error) {
	terminal := false
	defer func() {
		if terminal || err == nil {
			return
		}
		if markErr := e.mappings.MarkFailed(mapping.ID, err.Error()); markErr != nil {
			log.Errorf("[SyncEngine] Failed to release claim on mapping %d after error: %v", mapping.ID, markErr)
		}
	}()

	central := 0
	if inv, err := e.products.GetInventory(product.ID); err == nil {
		central = inv.Quantity
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load inventory for product %d: %w", product.ID, err)
	}

	strategy, err := conflict.ParseStrategy(store.ConflictStrategy)
	if err != nil {
		strategy = conflict.UseDatabase
	}

	// The store-side quantity is the last value we applied (or observed via
	// an inventory webhook); the storefront API has no cheap read-back.
	resolution, err := conflict.Resolve(central, mapping.SyncedQty, strategy)
	if err != nil {
		return nil, err
	}

	if resolution.NeedsReview {
		log.Warnf("[SyncEngine] Manual conflict strategy for product %d store %d, flagging for review (central=%d, store=%d)",
			product.ID, store.ID, central, mapping.SyncedQty)
		if err := e.mappings.MarkNeedsReview(mapping.ID); err != nil {
			return nil, fmt.Errorf("failed to flag mapping %d for review: %w", mapping.ID, err)
		}
		result.Outcome = OutcomeNeedsReview
		return result, nil
	}

	// Permanent storefront rejections must not burn retry attempts
	var permErr error
	applyErr := retry.Do(ctx, func() error {
		err := e.client.SetInventoryLevel(ctx, store, product.SKU, resolution.Quantity)
		if err != nil && shopclient.IsPermanent(err) {
			permErr = err
			return nil
		}
		return err
	}, e.withRetryLogging(product.SKU, store.Domain))
	if applyErr == nil && permErr != nil {
		applyErr = permErr
	}

	if applyErr != nil {
		log.Errorf("[SyncEngine] Sync failed for sku=%s store=%s: %v", product.SKU, store.Domain, applyErr)
		if markErr := e.mappings.MarkFailed(mapping.ID, applyErr.Error()); markErr != nil {
			log.Errorf("[SyncEngine] Additionally failed to record failure on mapping %d: %v", mapping.ID, markErr)
		} else {
			terminal = true
		}
		result.Outcome = OutcomeFailed
		result.Error = applyErr.Error()
		return result, applyErr
	}

	if err := e.mappings.MarkCompleted(mapping.ID, resolution.Quantity); err != nil {
		return nil, fmt.Errorf("failed to record completion on mapping %d: %w", mapping.ID, err)
	}

	log.Infof("[SyncEngine] Synced sku=%s store=%s quantity=%d (strategy=%s)", product.SKU, store.Domain, resolution.Quantity, strategy)
	result.Outcome = OutcomeCompleted
	result.AppliedQty = resolution.Quantity
	return result, nil
}

// withRetryLogging attaches attempt logging to the engine's retry options
func (e *Engine) withRetryLogging(sku, domain string) retry.Options {
	opts := e.retryOpts
	prev := opts.OnRetry
	opts.OnRetry = func(attempt int, err error) {
		log.Warnf("[SyncEngine] Attempt %d failed for sku=%s store=%s: %v", attempt, sku, domain, err)
		if prev != nil {
			prev(attempt, err)
		}
	}
	return opts
}

// SyncProduct reconciles one product against every active, sync-enabled
// store it is mapped to. Unit failures do not stop the remaining stores.
func (e *Engine) SyncProduct(ctx context.Context, productID uint) ([]Result, error) {
	mappings, err := e.mappings.ListByProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for product %d: %w", productID, err)
	}

	results := make([]Result, 0, len(mappings))
	var firstErr error
	for _, m := range mappings {
		res, err := e.SyncMapping(ctx, m.ProductID, m.StoreID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, firstErr
}

// ResolveProduct looks a product up by its SKU
func (e *Engine) ResolveProduct(sku string) (*models.Product, error) {
	return e.products.GetBySKU(sku)
}

// SyncProductToStore synchronously drives one orchestration cycle for an
// ad-hoc/manual trigger addressed by SKU and store domain.
func (e *Engine) SyncProductToStore(ctx context.Context, sku, storeDomain string) (*Result, error) {
	product, err := e.products.GetBySKU(sku)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sku %q: %w", sku, err)
	}
	store, err := e.stores.GetByDomain(storeDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store %q: %w", storeDomain, err)
	}
	return e.SyncMapping(ctx, product.ID, store.ID)
}

// ObserveStoreQuantity records a store-reported quantity on the mapping so
// the next reconciliation resolves against fresh data. Driven by
// inventory_levels/update webhooks.
func (e *Engine) ObserveStoreQuantity(productID, storeID uint, quantity int) error {
	mapping, err := e.mappings.GetByPair(productID, storeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.mappings.SetSyncedQty(mapping.ID, quantity)
}
