package models

import (
	"time"

	"gorm.io/gorm"
)

// Aggregate sync status values exposed for a product across all of its
// store mappings.
const (
	ProductSyncStatusSynced    = "synced"
	ProductSyncStatusOutOfSync = "out-of-sync"
	ProductSyncStatusError     = "error"
)

// Product represents a sellable item identified by its SKU
type Product struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	SKU       string           `gorm:"type:varchar(100);not null;uniqueIndex" json:"sku"`
	Title     string           `gorm:"type:varchar(255);not null" json:"title"`
	Inventory *InventoryRecord `gorm:"foreignKey:ProductID" json:"inventory,omitempty"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// InventoryRecord holds the central (system-of-record) quantity for a product
type InventoryRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProductID      uint      `gorm:"not null;uniqueIndex" json:"product_id"`
	Quantity       int       `gorm:"not null;default:0" json:"quantity"`
	LastAdjustedAt time.Time `gorm:"autoUpdateTime" json:"last_adjusted_at"`
}

// AggregateSyncStatus derives the outward-facing product status from its
// mappings: error if any mapping errored, synced only if all mappings are
// synced, out-of-sync otherwise.
func AggregateSyncStatus(mappings []StoreMapping) string {
	if len(mappings) == 0 {
		return ProductSyncStatusOutOfSync
	}
	allSynced := true
	for _, m := range mappings {
		if m.SyncStatus == SyncStatusFailed {
			return ProductSyncStatusError
		}
		if m.SyncStatus != SyncStatusCompleted {
			allSynced = false
		}
	}
	if allSynced {
		return ProductSyncStatusSynced
	}
	return ProductSyncStatusOutOfSync
}

// AdjustQuantity applies a delta to the central quantity atomically
func (ir *InventoryRecord) AdjustQuantity(db *gorm.DB, delta int) error {
	return db.Model(ir).Updates(map[string]interface{}{
		"quantity":         gorm.Expr("quantity + ?", delta),
		"last_adjusted_at": time.Now(),
	}).Error
}

// --- Static Functions ---

// FindProductByID finds a product by ID
func FindProductByID(db *gorm.DB, id uint) (*Product, error) {
	var product Product
	result := db.Preload("Inventory").Where("id = ?", id).First(&product)
	return &product, result.Error
}

// FindProductBySKU finds a product by its SKU
func FindProductBySKU(db *gorm.DB, sku string) (*Product, error) {
	var product Product
	result := db.Preload("Inventory").Where("sku = ?", sku).First(&product)
	return &product, result.Error
}

// FindInventoryRecordByProductID finds the inventory record for a product
func FindInventoryRecordByProductID(db *gorm.DB, productID uint) (*InventoryRecord, error) {
	var record InventoryRecord
	result := db.Where("product_id = ?", productID).First(&record)
	return &record, result.Error
}
