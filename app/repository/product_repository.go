package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/StockPilotApp/StockPilot/app/models"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create creates a new product in the database
func (r *productRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// GetByID retrieves a product by its ID including its inventory record
func (r *productRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.Preload("Inventory").First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetBySKU retrieves a product by its SKU including its inventory record
func (r *productRepository) GetBySKU(sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.Preload("Inventory").Where("sku = ?", sku).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Update updates an existing product in the database
func (r *productRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}

// List retrieves products with pagination
func (r *productRepository) List(offset, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Preload("Inventory").Order("id ASC").
		Offset(offset).Limit(limit).Find(&products).Error
	return products, err
}

// Count returns the total number of products
func (r *productRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Product{}).Count(&count).Error
	return count, err
}

// GetInventory retrieves the central inventory record for a product
func (r *productRepository) GetInventory(productID uint) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.Where("product_id = ?", productID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AdjustInventory applies a delta to the central quantity atomically,
// creating the inventory record on first use
func (r *productRepository) AdjustInventory(productID uint, delta int) error {
	result := r.db.Model(&models.InventoryRecord{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"quantity":         gorm.Expr("quantity + ?", delta),
			"last_adjusted_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.db.Create(&models.InventoryRecord{
			ProductID:      productID,
			Quantity:       delta,
			LastAdjustedAt: time.Now(),
		}).Error
	}
	return nil
}

// SetInventory sets the absolute central quantity, creating the inventory
// record on first use
func (r *productRepository) SetInventory(productID uint, quantity int) error {
	var record models.InventoryRecord
	err := r.db.Where("product_id = ?", productID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(&models.InventoryRecord{
			ProductID:      productID,
			Quantity:       quantity,
			LastAdjustedAt: time.Now(),
		}).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&record).Updates(map[string]interface{}{
		"quantity":         quantity,
		"last_adjusted_at": time.Now(),
	}).Error
}
