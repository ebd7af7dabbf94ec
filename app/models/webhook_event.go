package models

import (
	"time"

	"gorm.io/gorm"
)

// WebhookEvent stores inbound commerce webhook payloads with deduplication
// metadata for idempotent processing.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EventID         string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	Topic           string     `gorm:"type:varchar(100);not null;index" json:"topic"`
	ShopDomain      string     `gorm:"type:varchar(255);not null;index" json:"shop_domain"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarkProcessed records successful processing of the event
func (we *WebhookEvent) MarkProcessed(db *gorm.DB) error {
	now := time.Now()
	we.ProcessedAt = &now
	we.ProcessingError = ""
	return db.Model(we).Updates(map[string]interface{}{
		"processed_at":     now,
		"processing_error": "",
	}).Error
}

// MarkProcessingError records a processing failure on the event
func (we *WebhookEvent) MarkProcessingError(db *gorm.DB, errMsg string) error {
	we.ProcessingError = errMsg
	return db.Model(we).Update("processing_error", errMsg).Error
}

// --- Static Functions ---

// FindWebhookEventByEventID finds an event by its provider event id
func FindWebhookEventByEventID(db *gorm.DB, eventID string) (*WebhookEvent, error) {
	var event WebhookEvent
	result := db.Where("event_id = ?", eventID).First(&event)
	return &event, result.Error
}
