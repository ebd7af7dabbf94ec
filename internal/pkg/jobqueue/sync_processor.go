package jobqueue

import (
	"context"
	"fmt"
)

// processSyncJob drives one orchestration cycle for the targeted mapping(s).
// A failed cycle returns its error so the queue's retry policy applies on top
// of the engine's own outward-call retries.
func (m *Manager) processSyncJob(ctx context.Context, job *Job) error {
	payload, err := DecodePayload(job)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *InventorySyncPayload:
		_, err := m.engine.SyncMapping(ctx, p.ProductID, p.StoreID)
		return err
	case *ProductSyncPayload:
		_, err := m.engine.SyncProduct(ctx, p.ProductID)
		return err
	}

	return fmt.Errorf("sync job %s has unexpected type %s", job.ID, job.Type)
}
