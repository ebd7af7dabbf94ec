package repository

import (
	"gorm.io/gorm"

	"github.com/StockPilotApp/StockPilot/app/models"
)

// storeRepository implements the StoreRepository interface
type storeRepository struct {
	db *gorm.DB
}

// NewStoreRepository creates a new store repository instance
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

// Create creates a new store in the database
func (r *storeRepository) Create(store *models.Store) error {
	return r.db.Create(store).Error
}

// GetByID retrieves a store by its ID
func (r *storeRepository) GetByID(id uint) (*models.Store, error) {
	var store models.Store
	err := r.db.First(&store, id).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// GetByDomain retrieves a store by its shop domain
func (r *storeRepository) GetByDomain(domain string) (*models.Store, error) {
	var store models.Store
	err := r.db.Where("domain = ?", domain).First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// GetActiveSyncEnabled retrieves all stores eligible for synchronization
func (r *storeRepository) GetActiveSyncEnabled() ([]models.Store, error) {
	var stores []models.Store
	err := r.db.Where("is_active = ? AND sync_enabled = ?", true, true).
		Order("id ASC").Find(&stores).Error
	return stores, err
}

// Update updates an existing store in the database
func (r *storeRepository) Update(store *models.Store) error {
	return r.db.Save(store).Error
}

// Deactivate soft-deactivates a store; stores are never hard-deleted while
// historical sync records reference them
func (r *storeRepository) Deactivate(id uint) error {
	return r.db.Model(&models.Store{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "sync_enabled": false}).Error
}

// List retrieves stores with pagination
func (r *storeRepository) List(offset, limit int) ([]models.Store, error) {
	var stores []models.Store
	err := r.db.Order("id ASC").Offset(offset).Limit(limit).Find(&stores).Error
	return stores, err
}

// Count returns the total number of stores
func (r *storeRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Store{}).Count(&count).Error
	return count, err
}
