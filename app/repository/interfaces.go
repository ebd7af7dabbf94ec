package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/StockPilotApp/StockPilot/app/models"
)

// StoreRepository defines the interface for store-related database operations
type StoreRepository interface {
	Create(store *models.Store) error
	GetByID(id uint) (*models.Store, error)
	GetByDomain(domain string) (*models.Store, error)
	GetActiveSyncEnabled() ([]models.Store, error)
	Update(store *models.Store) error
	Deactivate(id uint) error
	List(offset, limit int) ([]models.Store, error)
	Count() (int64, error)
}

// ProductRepository defines the interface for product and central-inventory
// database operations
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetBySKU(sku string) (*models.Product, error)
	Update(product *models.Product) error
	List(offset, limit int) ([]models.Product, error)
	Count() (int64, error)
	GetInventory(productID uint) (*models.InventoryRecord, error)
	AdjustInventory(productID uint, delta int) error
	SetInventory(productID uint, quantity int) error
}

// StoreMappingRepository defines the interface for (product, store) mapping
// operations. Status transitions must be atomic read-then-conditional-writes.
type StoreMappingRepository interface {
	Create(mapping *models.StoreMapping) error
	GetByID(id uint) (*models.StoreMapping, error)
	GetByPair(productID, storeID uint) (*models.StoreMapping, error)
	ListByProduct(productID uint) ([]models.StoreMapping, error)
	ListByStore(storeID uint) ([]models.StoreMapping, error)
	// BeginSync atomically moves the mapping into in_progress unless it is
	// already there; false means another attempt is in flight.
	BeginSync(id uint) (bool, error)
	MarkCompleted(id uint, appliedQty int) error
	MarkFailed(id uint, errMsg string) error
	MarkNeedsReview(id uint) error
	// SetSyncedQty records a store-reported quantity without touching the
	// sync status.
	SetSyncedQty(id uint, qty int) error
}

// WebhookEventRepository defines the interface for webhook dedup records
type WebhookEventRepository interface {
	Create(event *models.WebhookEvent) error
	GetByEventID(eventID string) (*models.WebhookEvent, error)
	MarkProcessed(id uint) error
	MarkError(id uint, errMsg string) error
}

// QueueRepository defines the interface for cache/queue introspection
type QueueRepository interface {
	GetAllKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	GetListLength(key string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Store        StoreRepository
	Product      ProductRepository
	StoreMapping StoreMappingRepository
	WebhookEvent WebhookEventRepository
	Queue        QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Store:        NewStoreRepository(db),
		Product:      NewProductRepository(db),
		StoreMapping: NewStoreMappingRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Queue:        NewQueueRepository(),
	}
}
