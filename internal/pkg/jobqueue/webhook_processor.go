package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// processWebhookJob consumes translated commerce events. Each event becomes a
// set of per-SKU central-inventory deltas (or one absolute set for
// inventory_levels/update), followed by a fan-out sync of every affected
// product.
func (m *Manager) processWebhookJob(ctx context.Context, job *Job) error {
	payload, err := DecodePayload(job)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *OrderPayload:
		return m.applyDeltas(ctx, job, orderDeltas(p, job.Type))

	case *RefundPayload:
		deltas := refundDeltas(p)
		if len(deltas) == 0 {
			log.Infof("[WebhookProcessor] Refund %s for order %s restocks nothing, done", job.ID, p.OrderID)
			return nil
		}
		return m.applyDeltas(ctx, job, deltas)

	case *InventoryLevelPayload:
		return m.applyInventoryLevel(ctx, job, p)
	}

	return fmt.Errorf("webhook job %s has unexpected type %s", job.ID, job.Type)
}

// orderDeltas computes the per-SKU central-inventory delta of an order event:
// orders/create decreases inventory, orders/cancelled restores it.
func orderDeltas(p *OrderPayload, jobType JobType) map[string]int {
	sign := -1
	if jobType == JobTypeOrderCancelled {
		sign = 1
	}
	deltas := make(map[string]int)
	for _, li := range p.LineItems {
		deltas[li.SKU] += sign * li.Quantity
	}
	return deltas
}

// refundDeltas computes the per-SKU delta of a refund. Only return/cancel
// lines restore stock; no_restock lines contribute nothing even when the
// money moves.
func refundDeltas(p *RefundPayload) map[string]int {
	deltas := make(map[string]int)
	for _, li := range p.LineItems {
		if !li.Restocks() {
			continue
		}
		deltas[li.SKU] += li.Quantity
	}
	return deltas
}

// applyDeltas adjusts central inventory per SKU and syncs each affected
// product out to its stores. A SKU that is not in the catalog is skipped with
// a warning; the remaining SKUs of the event still apply.
func (m *Manager) applyDeltas(ctx context.Context, job *Job, deltas map[string]int) error {
	var firstErr error
	for sku, delta := range deltas {
		if delta == 0 {
			continue
		}

		product, err := m.repos.Product.GetBySKU(sku)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[WebhookProcessor] Job %s references unknown SKU %q, skipping", job.ID, sku)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve sku %q: %w", sku, err)
		}

		if err := m.repos.Product.AdjustInventory(product.ID, delta); err != nil {
			return fmt.Errorf("failed to adjust inventory for sku %q by %d: %w", sku, delta, err)
		}
		log.Infof("[WebhookProcessor] Adjusted central inventory for sku=%s by %+d (job %s)", sku, delta, job.ID)

		if _, err := m.engine.SyncProduct(ctx, product.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// applyInventoryLevel handles an external admin-originated quantity change:
// record what the store now shows, take the value as the new central truth and
// fan it back out to the other stores.
func (m *Manager) applyInventoryLevel(ctx context.Context, job *Job, p *InventoryLevelPayload) error {
	product, err := m.repos.Product.GetBySKU(p.SKU)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[WebhookProcessor] Job %s references unknown SKU %q, skipping", job.ID, p.SKU)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve sku %q: %w", p.SKU, err)
	}

	if store, err := m.repos.Store.GetByDomain(p.ShopDomain); err == nil {
		if err := m.engine.ObserveStoreQuantity(product.ID, store.ID, p.Available); err != nil {
			log.Warnf("[WebhookProcessor] Failed to record store quantity for sku=%s store=%s: %v", p.SKU, p.ShopDomain, err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to resolve store %q: %w", p.ShopDomain, err)
	}

	if err := m.repos.Product.SetInventory(product.ID, p.Available); err != nil {
		return fmt.Errorf("failed to set inventory for sku %q: %w", p.SKU, err)
	}
	log.Infof("[WebhookProcessor] Set central inventory for sku=%s to %d from %s (job %s)", p.SKU, p.Available, p.ShopDomain, job.ID)

	_, err = m.engine.SyncProduct(ctx, product.ID)
	return err
}
