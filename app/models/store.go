package models

import (
	"time"

	"gorm.io/gorm"
)

// Conflict resolution strategy constants
const (
	ConflictUseLowest   = "use_lowest"   // min(central, store)
	ConflictUseHighest  = "use_highest"  // max(central, store)
	ConflictUseDatabase = "use_database" // central wins
	ConflictUseStore    = "use_store"    // store wins
	ConflictAverage     = "average"      // floor((central+store)/2)
	ConflictManual      = "manual"       // deferred to human review
)

// Store represents a connected external storefront
type Store struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(100);not null" json:"name"`
	Domain           string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"domain"`
	AccessToken      string    `gorm:"type:varchar(255)" json:"-"`
	IsActive         bool      `gorm:"default:true;index" json:"is_active"`
	SyncEnabled      bool      `gorm:"default:true" json:"sync_enabled"`
	ConflictStrategy string    `gorm:"type:varchar(20);default:'use_database'" json:"conflict_strategy"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Deactivate soft-deactivates the store. Stores are never hard-deleted
// while historical sync records reference them.
func (s *Store) Deactivate(db *gorm.DB) error {
	s.IsActive = false
	s.SyncEnabled = false
	return db.Model(s).Updates(map[string]interface{}{
		"is_active":    false,
		"sync_enabled": false,
	}).Error
}

// --- Static Functions ---

// FindStoreByID finds a store by ID
func FindStoreByID(db *gorm.DB, id uint) (*Store, error) {
	var store Store
	result := db.Where("id = ?", id).First(&store)
	return &store, result.Error
}

// FindStoreByDomain finds a store by its shop domain
func FindStoreByDomain(db *gorm.DB, domain string) (*Store, error) {
	var store Store
	result := db.Where("domain = ?", domain).First(&store)
	return &store, result.Error
}

// FindActiveSyncEnabledStores returns all stores eligible for synchronization
func FindActiveSyncEnabledStores(db *gorm.DB) ([]Store, error) {
	var stores []Store
	result := db.Where("is_active = ? AND sync_enabled = ?", true, true).Order("id ASC").Find(&stores)
	return stores, result.Error
}
