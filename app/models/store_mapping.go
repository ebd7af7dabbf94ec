package models

import (
	"time"

	"gorm.io/gorm"
)

// Sync status values for a single (product, store) mapping. The status is
// derived solely from the most recent completed or failed sync attempt for
// that pair and is mutated exclusively by the sync engine.
const (
	SyncStatusPending     = "pending"
	SyncStatusInProgress  = "in_progress"
	SyncStatusCompleted   = "completed"
	SyncStatusFailed      = "failed"
	SyncStatusNeedsReview = "needs_review"
)

// StoreMapping relates one product to one store and carries the sync state
// for that pair. Unique per (product, store).
type StoreMapping struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ProductID    uint       `gorm:"not null;index:ux_store_mappings_product_store,unique,priority:1" json:"product_id"`
	StoreID      uint       `gorm:"not null;index:ux_store_mappings_product_store,unique,priority:2" json:"store_id"`
	ExternalID   string     `gorm:"type:varchar(100)" json:"external_id"`
	SyncStatus   string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"sync_status"`
	SyncError    string     `gorm:"type:text" json:"sync_error"`
	SyncedQty    int        `gorm:"default:0" json:"synced_qty"`
	LastSyncedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Store   *Store   `gorm:"foreignKey:StoreID" json:"store,omitempty"`
}

// TransitionSyncStatus performs an atomic read-then-conditional-write status
// transition. It returns false when the mapping was not in fromStatus, which
// callers treat as a coalesced duplicate rather than an error.
func (sm *StoreMapping) TransitionSyncStatus(db *gorm.DB, fromStatus, toStatus string) (bool, error) {
	result := db.Model(&StoreMapping{}).
		Where("id = ? AND sync_status = ?", sm.ID, fromStatus).
		Update("sync_status", toStatus)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	sm.SyncStatus = toStatus
	return true, nil
}

// MarkCompleted records a successful sync attempt
func (sm *StoreMapping) MarkCompleted(db *gorm.DB, appliedQty int) error {
	now := time.Now()
	sm.SyncStatus = SyncStatusCompleted
	sm.SyncError = ""
	sm.SyncedQty = appliedQty
	sm.LastSyncedAt = &now
	return db.Model(sm).Updates(map[string]interface{}{
		"sync_status":    SyncStatusCompleted,
		"sync_error":     "",
		"synced_qty":     appliedQty,
		"last_synced_at": now,
	}).Error
}

// MarkFailed records a terminally failed sync attempt with its error detail
func (sm *StoreMapping) MarkFailed(db *gorm.DB, errMsg string) error {
	sm.SyncStatus = SyncStatusFailed
	sm.SyncError = errMsg
	return db.Model(sm).Updates(map[string]interface{}{
		"sync_status": SyncStatusFailed,
		"sync_error":  errMsg,
	}).Error
}

// MarkNeedsReview flags the mapping for human conflict resolution without
// applying a quantity
func (sm *StoreMapping) MarkNeedsReview(db *gorm.DB) error {
	sm.SyncStatus = SyncStatusNeedsReview
	return db.Model(sm).Update("sync_status", SyncStatusNeedsReview).Error
}

// --- Static Functions ---

// FindStoreMappingByID finds a mapping by ID
func FindStoreMappingByID(db *gorm.DB, id uint) (*StoreMapping, error) {
	var mapping StoreMapping
	result := db.Where("id = ?", id).First(&mapping)
	return &mapping, result.Error
}

// FindStoreMapping finds the mapping for a (product, store) pair
func FindStoreMapping(db *gorm.DB, productID, storeID uint) (*StoreMapping, error) {
	var mapping StoreMapping
	result := db.Where("product_id = ? AND store_id = ?", productID, storeID).First(&mapping)
	return &mapping, result.Error
}

// FindStoreMappingsByProductID returns all mappings for a product
func FindStoreMappingsByProductID(db *gorm.DB, productID uint) ([]StoreMapping, error) {
	var mappings []StoreMapping
	result := db.Where("product_id = ?", productID).Order("store_id ASC").Find(&mappings)
	return mappings, result.Error
}

// FindStoreMappingsByStoreID returns all mappings for a store
func FindStoreMappingsByStoreID(db *gorm.DB, storeID uint) ([]StoreMapping, error) {
	var mappings []StoreMapping
	result := db.Where("store_id = ?", storeID).Order("product_id ASC").Find(&mappings)
	return mappings, result.Error
}
