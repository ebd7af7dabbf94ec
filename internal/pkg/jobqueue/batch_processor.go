package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/StockPilotApp/StockPilot/internal/pkg/syncengine"
)

// processBatchJob runs a bulk fan-out. The job completes when every unit has
// been attempted; per-unit failures are accounted in the result, they do not
// fail the job.
func (m *Manager) processBatchJob(ctx context.Context, job *Job) error {
	payload, err := DecodePayload(job)
	if err != nil {
		return err
	}
	p, ok := payload.(*BatchOperationPayload)
	if !ok {
		return fmt.Errorf("batch job %s has unexpected type %s", job.ID, job.Type)
	}

	result, err := m.engine.RunBatch(ctx, syncengine.BatchOperation{
		Type:       p.OperationType,
		StoreID:    p.StoreID,
		ProductIDs: p.ProductIDs,
	})
	if err != nil {
		return fmt.Errorf("batch %s could not be expanded: %w", job.ID, err)
	}

	if result.Failed > 0 {
		log.Warnf("[BatchProcessor] Batch %s (%s) finished with failures: %d/%d units failed",
			job.ID, p.OperationType, result.Failed, result.Attempted)
		for _, e := range result.Errors {
			log.Warnf("[BatchProcessor] Batch %s unit error: %s", job.ID, e)
		}
	} else {
		log.Infof("[BatchProcessor] Batch %s (%s) finished: %d units, %d coalesced",
			job.ID, p.OperationType, result.Attempted, result.Coalesced)
	}
	return nil
}
