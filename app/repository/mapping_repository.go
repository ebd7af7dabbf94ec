package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/StockPilotApp/StockPilot/app/models"
)

// storeMappingRepository implements the StoreMappingRepository interface
type storeMappingRepository struct {
	db *gorm.DB
}

// NewStoreMappingRepository creates a new store mapping repository instance
func NewStoreMappingRepository(db *gorm.DB) StoreMappingRepository {
	return &storeMappingRepository{db: db}
}

// Create creates a new (product, store) mapping in the database
func (r *storeMappingRepository) Create(mapping *models.StoreMapping) error {
	return r.db.Create(mapping).Error
}

// GetByID retrieves a mapping by its ID
func (r *storeMappingRepository) GetByID(id uint) (*models.StoreMapping, error) {
	var mapping models.StoreMapping
	err := r.db.First(&mapping, id).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// GetByPair retrieves the mapping for a (product, store) pair
func (r *storeMappingRepository) GetByPair(productID, storeID uint) (*models.StoreMapping, error) {
	var mapping models.StoreMapping
	err := r.db.Where("product_id = ? AND store_id = ?", productID, storeID).First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// ListByProduct retrieves all mappings for a product
func (r *storeMappingRepository) ListByProduct(productID uint) ([]models.StoreMapping, error) {
	var mappings []models.StoreMapping
	err := r.db.Where("product_id = ?", productID).Order("store_id ASC").Find(&mappings).Error
	return mappings, err
}

// ListByStore retrieves all mappings for a store
func (r *storeMappingRepository) ListByStore(storeID uint) ([]models.StoreMapping, error) {
	var mappings []models.StoreMapping
	err := r.db.Where("store_id = ?", storeID).Order("product_id ASC").Find(&mappings).Error
	return mappings, err
}

// BeginSync atomically claims the mapping for one sync attempt. The
// conditional write guarantees at most one outstanding attempt per mapping;
// false means another attempt is already in flight.
func (r *storeMappingRepository) BeginSync(id uint) (bool, error) {
	result := r.db.Model(&models.StoreMapping{}).
		Where("id = ? AND sync_status <> ?", id, models.SyncStatusInProgress).
		Update("sync_status", models.SyncStatusInProgress)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCompleted records a successful sync attempt
func (r *storeMappingRepository) MarkCompleted(id uint, appliedQty int) error {
	return r.db.Model(&models.StoreMapping{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status":    models.SyncStatusCompleted,
			"sync_error":     "",
			"synced_qty":     appliedQty,
			"last_synced_at": time.Now(),
		}).Error
}

// MarkFailed records a terminally failed sync attempt with its error detail
func (r *storeMappingRepository) MarkFailed(id uint, errMsg string) error {
	return r.db.Model(&models.StoreMapping{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status": models.SyncStatusFailed,
			"sync_error":  errMsg,
		}).Error
}

// SetSyncedQty records a store-reported quantity without touching the
// sync status
func (r *storeMappingRepository) SetSyncedQty(id uint, qty int) error {
	return r.db.Model(&models.StoreMapping{}).Where("id = ?", id).
		Update("synced_qty", qty).Error
}

// MarkNeedsReview flags the mapping for human conflict resolution
func (r *storeMappingRepository) MarkNeedsReview(id uint) error {
	return r.db.Model(&models.StoreMapping{}).Where("id = ?", id).
		Update("sync_status", models.SyncStatusNeedsReview).Error
}
