package controllers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/StockPilotApp/StockPilot/internal/pkg/jobqueue"
)

var validate = validator.New()

type syncProductRequest struct {
	SKU         string `json:"sku" validate:"required"`
	StoreDomain string `json:"store_domain"`
}

// HandleSyncProduct drives a manual sync trigger. With a store domain the
// sync runs synchronously for that single pair and the outcome is returned;
// without one a product-wide sync job is enqueued.
func HandleSyncProduct(c *fiber.Ctx) error {
	var req syncProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	manager := jobqueue.GetManager()

	if req.StoreDomain != "" {
		result, err := manager.GetEngine().SyncProductToStore(context.Background(), req.SKU, req.StoreDomain)
		if err != nil && result == nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(result)
	}

	product, err := manager.GetEngine().ResolveProduct(req.SKU)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown sku",
		})
	}

	job, err := manager.GetRegistry().Enqueue(jobqueue.JobRequest{
		Queue:   jobqueue.QueueProductSync,
		Type:    jobqueue.JobTypeProductSync,
		Payload: jobqueue.ProductSyncPayload{ProductID: product.ID},
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to enqueue sync job",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID,
		"queue":  job.Queue,
	})
}

type batchRequest struct {
	OperationType string `json:"operation_type" validate:"required,oneof=bulk_inventory_update bulk_product_sync initial_sync"`
	StoreID       uint   `json:"store_id"`
	ProductIDs    []uint `json:"product_ids"`
}

// HandleBatchOperation enqueues a bulk fan-out job. The response carries the
// job id; per-unit progress is tracked on the mappings, not the job.
func HandleBatchOperation(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if req.StoreID == 0 && len(req.ProductIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "batch needs a store or product scope",
		})
	}

	job, err := jobqueue.GetManager().GetRegistry().Enqueue(jobqueue.JobRequest{
		Queue: jobqueue.QueueBatchOperations,
		Type:  jobqueue.JobTypeBatchOperation,
		Payload: jobqueue.BatchOperationPayload{
			OperationType: req.OperationType,
			StoreID:       req.StoreID,
			ProductIDs:    req.ProductIDs,
		},
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to enqueue batch job",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID,
		"queue":  job.Queue,
	})
}
