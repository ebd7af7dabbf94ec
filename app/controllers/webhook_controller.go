package controllers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/StockPilotApp/StockPilot/app/models"
	"github.com/StockPilotApp/StockPilot/app/repository"
	"github.com/StockPilotApp/StockPilot/internal/pkg/jobqueue"
	"github.com/StockPilotApp/StockPilot/internal/pkg/webhook"
)

// Webhook request headers. Signature verification happens upstream (reverse
// proxy); these identify the delivery.
const (
	HeaderWebhookEventID = "X-Webhook-Event-Id"
	HeaderShopDomain     = "X-Shop-Domain"
)

var webhookRepos *repository.Repositories

// InitializeWebhookController wires the webhook controller with repositories
func InitializeWebhookController() {
	webhookRepos = repository.GetGlobalRepositories()
}

// eventAlreadyProcessed reports whether a recorded delivery finished intake.
// A record without ProcessedAt came from an attempt that failed before the
// job was enqueued; re-delivery of that event must run again, not dedup.
func eventAlreadyProcessed(event *models.WebhookEvent) bool {
	return event != nil && event.ProcessedAt != nil
}

// HandleWebhook ingests one commerce webhook delivery: record it for
// deduplication, translate it to a typed job and enqueue it. A re-delivered
// event id is acknowledged without enqueueing anything once its intake
// completed; a failed intake gets retried on re-delivery.
func HandleWebhook(c *fiber.Ctx) error {
	topic := c.Params("+")
	eventID := c.Get(HeaderWebhookEventID)
	shopDomain := c.Get(HeaderShopDomain)

	if eventID == "" || shopDomain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing event id or shop domain header",
		})
	}

	record, err := webhookRepos.WebhookEvent.GetByEventID(eventID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check event",
		})
	}
	if eventAlreadyProcessed(record) {
		log.Infof("[Webhook] Duplicate delivery of event %s (%s), acknowledging", eventID, topic)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "duplicate",
			"event_id": eventID,
		})
	}

	body := c.Body()
	if !json.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "payload is not valid JSON",
		})
	}

	if record != nil {
		// Recorded but never enqueued; the enqueue below is SETNX-guarded,
		// so a second attempt is safe
		log.Warnf("[Webhook] Retrying intake of event %s (%s) after earlier failure: %s",
			eventID, topic, record.ProcessingError)
	} else {
		record = &models.WebhookEvent{
			EventID:     eventID,
			Topic:       topic,
			ShopDomain:  shopDomain,
			PayloadJSON: string(body),
		}
		if err := webhookRepos.WebhookEvent.Create(record); err != nil {
			// A concurrent delivery may have won the unique index race
			if dup, dupErr := webhookRepos.WebhookEvent.GetByEventID(eventID); dupErr == nil && dup != nil {
				return c.Status(fiber.StatusOK).JSON(fiber.Map{
					"status":   "duplicate",
					"event_id": eventID,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to record event",
			})
		}
	}

	req, err := webhook.Translate(webhook.Event{
		EventID:    eventID,
		Topic:      topic,
		ShopDomain: shopDomain,
		Payload:    body,
	})
	if err != nil {
		var unknown *webhook.ErrUnknownTopic
		if errors.As(err, &unknown) {
			// Unhandled topics are acknowledged so the sender stops retrying
			log.Infof("[Webhook] Ignoring unhandled topic %s (event %s)", topic, eventID)
			_ = webhookRepos.WebhookEvent.MarkProcessed(record.ID)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"status":   "ignored",
				"event_id": eventID,
			})
		}
		_ = webhookRepos.WebhookEvent.MarkError(record.ID, err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	job, err := jobqueue.GetManager().GetRegistry().Enqueue(*req)
	if err != nil {
		_ = webhookRepos.WebhookEvent.MarkError(record.ID, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to enqueue job",
		})
	}

	if err := webhookRepos.WebhookEvent.MarkProcessed(record.ID); err != nil {
		log.Warnf("[Webhook] Failed to mark event %s processed: %v", eventID, err)
	}

	log.Infof("[Webhook] Accepted event %s (%s) as job %s", eventID, topic, job.ID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":   "queued",
		"event_id": eventID,
		"job_id":   job.ID,
		"queue":    job.Queue,
	})
}
