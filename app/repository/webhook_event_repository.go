package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/StockPilotApp/StockPilot/app/models"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Create stores an inbound webhook event record
func (r *webhookEventRepository) Create(event *models.WebhookEvent) error {
	return r.db.Create(event).Error
}

// GetByEventID retrieves an event by its provider event id
func (r *webhookEventRepository) GetByEventID(eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessed records successful processing of the event
func (r *webhookEventRepository) MarkProcessed(id uint) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     time.Now(),
			"processing_error": "",
		}).Error
}

// MarkError records a processing failure on the event
func (r *webhookEventRepository) MarkError(id uint, errMsg string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Update("processing_error", errMsg).Error
}
