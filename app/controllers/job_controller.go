package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/StockPilotApp/StockPilot/app/repository"
	"github.com/StockPilotApp/StockPilot/internal/pkg/jobqueue"
)

// HandleGetJob returns one job by id. The optional ?queue= parameter narrows
// the lookup to a single queue; without it all queues are probed in order.
func HandleGetJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	queueName := jobqueue.QueueName(c.Query("queue"))

	job, err := jobqueue.GetManager().GetRegistry().GetJob(context.Background(), jobID, queueName)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if job == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job not found",
		})
	}

	return c.JSON(job)
}

// HandleCancelJob cancels a queued-but-not-started job. Cancelling a job that
// is unknown or already running reports ok=false, not an error.
func HandleCancelJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	queueName := jobqueue.QueueName(c.Query("queue"))

	ok, err := jobqueue.GetManager().GetRegistry().CancelJob(context.Background(), jobID, queueName)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"job_id":    jobID,
		"cancelled": ok,
	})
}

// HandleRetryJob re-schedules a failed job for immediate execution
func HandleRetryJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	queueName := jobqueue.QueueName(c.Query("queue"))

	ok, err := jobqueue.GetManager().GetRegistry().RetryJob(context.Background(), jobID, queueName)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "job is not in a failed state",
		})
	}

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"retried": true,
	})
}

// HandleQueueStats returns per-queue depth and finished-status counters
func HandleQueueStats(c *fiber.Ctx) error {
	ctx := context.Background()
	registry := jobqueue.GetManager().GetRegistry()

	out := make([]fiber.Map, 0, len(registry.Names()))
	for _, name := range registry.Names() {
		q, err := registry.Get(name)
		if err != nil {
			continue
		}

		pending, _ := q.GetPendingSize(ctx)
		processing, _ := q.GetProcessingSize(ctx)
		stats, err := q.GetStats(ctx)
		if err != nil {
			stats = map[jobqueue.JobStatus]int64{}
		}

		out = append(out, fiber.Map{
			"queue":      name,
			"pending":    pending,
			"processing": processing,
			"completed":  stats[jobqueue.JobStatusCompleted],
			"failed":     stats[jobqueue.JobStatusFailed],
		})
	}

	return c.JSON(fiber.Map{"queues": out})
}

// HandleQueueKeys lists the queue- and lock-related cache keys with their
// TTLs, for operator inspection of stuck state.
func HandleQueueKeys(c *fiber.Ctx) error {
	queueRepo := repository.GetGlobalRepositories().Queue

	keys, err := queueRepo.GetAllKeys()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list cache keys",
		})
	}

	out := make([]fiber.Map, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, "queue:") && !strings.HasPrefix(key, "sync_lock:") {
			continue
		}

		entry := fiber.Map{"key": key}
		if ttl, err := queueRepo.GetTTL(key); err == nil {
			entry["ttl_seconds"] = int64(ttl.Seconds())
		}
		if strings.Contains(key, ":job:") {
			if value, err := queueRepo.GetValue(key); err == nil {
				entry["size_bytes"] = len(value)
			}
		}
		// Pending/processing/terminal entries are lists; report their depth
		if strings.Contains(key, ":pending:") || strings.HasSuffix(key, ":processing") ||
			strings.HasSuffix(key, ":completed") || strings.HasSuffix(key, ":failed") {
			if length, err := queueRepo.GetListLength(key); err == nil {
				entry["length"] = length
			}
		}
		out = append(out, entry)
	}

	return c.JSON(fiber.Map{"keys": out})
}

// HandleDeleteQueueKey removes one queue or lock key. Deleting a lock key
// forcibly releases a stuck sync unit.
func HandleDeleteQueueKey(c *fiber.Ctx) error {
	key := c.Params("*")
	if !strings.HasPrefix(key, "queue:") && !strings.HasPrefix(key, "sync_lock:") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "only queue and sync_lock keys can be deleted",
		})
	}

	deleted, err := repository.GetGlobalRepositories().Queue.DeleteKey(key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete key",
		})
	}
	if deleted == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "key not found",
		})
	}

	return c.JSON(fiber.Map{"deleted": key})
}
