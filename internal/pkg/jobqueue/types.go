package jobqueue

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueueName identifies one of the named queues
type QueueName string

const (
	QueueWebhookProcessing QueueName = "webhook_processing"
	QueueBatchOperations   QueueName = "batch_operations"
	QueueInventorySync     QueueName = "inventory_sync"
	QueueProductSync       QueueName = "product_sync"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeOrderCreated         JobType = "order_created"
	JobTypeOrderCancelled       JobType = "order_cancelled"
	JobTypeRefundCreated        JobType = "refund_created"
	JobTypeInventoryLevelUpdate JobType = "inventory_level_update"
	JobTypeBatchOperation       JobType = "batch_operation"
	JobTypeInventorySync        JobType = "inventory_sync"
	JobTypeProductSync          JobType = "product_sync"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job priorities; lower number = higher priority
const (
	PriorityOrderEvents = 1 // order create/cancel
	PriorityStockEvents = 2 // refunds, inventory level updates
	PriorityDefault     = 3
	PriorityBatch       = 5 // bulk work, not user-latency-sensitive
)

// Job is the shared envelope carried through every queue
type Job struct {
	ID          string          `json:"id"`
	Queue       QueueName       `json:"queue"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	ErrorMsg    string          `json:"error_msg,omitempty"`
}

// RetentionPolicy bounds how long and how many finished job records are kept
type RetentionPolicy struct {
	Age   time.Duration `json:"age"`
	Count int64         `json:"count"`
}

// QueueOptions are the per-queue defaults. The struct is immutable once the
// queue is constructed; per-call overrides are merged functionally via
// EnqueueOptions.
type QueueOptions struct {
	Priority         int
	MaxAttempts      int
	BackoffBase      time.Duration
	RemoveOnComplete RetentionPolicy
	RemoveOnFail     RetentionPolicy
	Workers          int
}

// DefaultQueueOptions returns the shared envelope defaults
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		Priority:         PriorityDefault,
		MaxAttempts:      3,
		BackoffBase:      5 * time.Second,
		RemoveOnComplete: RetentionPolicy{Age: 24 * time.Hour, Count: 1000},
		RemoveOnFail:     RetentionPolicy{Age: 7 * 24 * time.Hour, Count: 5000},
		Workers:          3,
	}
}

// EnqueueOptions override queue defaults for a single enqueue call. JobID is
// the idempotency key; a duplicate enqueue with the same id is a no-op that
// returns the existing job.
type EnqueueOptions struct {
	JobID       string
	Priority    int
	MaxAttempts int
	BackoffBase time.Duration
}

// merge returns the effective options for one enqueue call without mutating
// the queue defaults.
func (o QueueOptions) merge(e EnqueueOptions) QueueOptions {
	if e.Priority > 0 {
		o.Priority = e.Priority
	}
	if e.MaxAttempts > 0 {
		o.MaxAttempts = e.MaxAttempts
	}
	if e.BackoffBase > 0 {
		o.BackoffBase = e.BackoffBase
	}
	return o
}

// JobRequest is a fully-described enqueue produced by the webhook translator
type JobRequest struct {
	Queue   QueueName
	Type    JobType
	Payload interface{}
	Options EnqueueOptions
}

// --- Typed payloads (tagged union, decoded once at the queue boundary) ---

// OrderLineItem is one line of an order event
type OrderLineItem struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// OrderPayload carries the full line-item list of an order create/cancel
// event so the consumer can compute per-SKU deltas without a second fetch.
type OrderPayload struct {
	OrderID    string          `json:"order_id" validate:"required"`
	ShopDomain string          `json:"shop_domain" validate:"required"`
	LineItems  []OrderLineItem `json:"line_items" validate:"dive"`
}

// Restock types on refund line items
const (
	RestockTypeReturn    = "return"
	RestockTypeCancel    = "cancel"
	RestockTypeNoRestock = "no_restock"
)

// RefundLineItem is one line of a refund event. Only return/cancel restock
// types contribute to the inventory delta; no_restock lines are excluded.
type RefundLineItem struct {
	SKU         string `json:"sku" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	RestockType string `json:"restock_type" validate:"required,oneof=return cancel no_restock"`
}

// Restocks reports whether this refund line returns stock to inventory
func (li RefundLineItem) Restocks() bool {
	return li.RestockType == RestockTypeReturn || li.RestockType == RestockTypeCancel
}

// RefundPayload carries the refund line items of a refunds/create event
type RefundPayload struct {
	OrderID    string           `json:"order_id" validate:"required"`
	ShopDomain string           `json:"shop_domain" validate:"required"`
	LineItems  []RefundLineItem `json:"line_items" validate:"dive"`
}

// InventoryLevelPayload carries a direct central-quantity adjustment from an
// external admin-originated change
type InventoryLevelPayload struct {
	SKU        string `json:"sku" validate:"required"`
	ShopDomain string `json:"shop_domain" validate:"required"`
	Available  int    `json:"available"`
}

// Batch operation types
const (
	BatchOpBulkInventoryUpdate = "bulk_inventory_update"
	BatchOpBulkProductSync     = "bulk_product_sync"
	BatchOpInitialSync         = "initial_sync"
)

// BatchOperationPayload describes a fan-out unit, not an atomic transaction;
// partial completion is expected and tracked per unit.
type BatchOperationPayload struct {
	OperationType string            `json:"operation_type" validate:"required,oneof=bulk_inventory_update bulk_product_sync initial_sync"`
	StoreID       uint              `json:"store_id,omitempty"`
	ProductIDs    []uint            `json:"product_ids,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// InventorySyncPayload targets one (product, store) mapping
type InventorySyncPayload struct {
	ProductID uint `json:"product_id" validate:"required"`
	StoreID   uint `json:"store_id" validate:"required"`
}

// ProductSyncPayload targets all mappings of one product
type ProductSyncPayload struct {
	ProductID uint `json:"product_id" validate:"required"`
}

// DecodePayload unmarshals the envelope payload into the concrete type for
// the job's type. Consumers decode exactly once here instead of narrowing
// dynamically downstream.
func DecodePayload(job *Job) (interface{}, error) {
	var (
		target interface{}
		err    error
	)

	switch job.Type {
	case JobTypeOrderCreated, JobTypeOrderCancelled:
		var p OrderPayload
		err = json.Unmarshal(job.Payload, &p)
		target = &p
	case JobTypeRefundCreated:
		var p RefundPayload
		err = json.Unmarshal(job.Payload, &p)
		target = &p
	case JobTypeInventoryLevelUpdate:
		var p InventoryLevelPayload
		err = json.Unmarshal(job.Payload, &p)
		target = &p
	case JobTypeBatchOperation:
		var p BatchOperationPayload
		err = json.Unmarshal(job.Payload, &p)
		target = &p
	case JobTypeInventorySync:
		var p InventorySyncPayload
		err = json.Unmarshal(job.Payload, &p)
		target = &p
	case JobTypeProductSync:
		var p ProductSyncPayload
		err = json.Unmarshal(job.Payload, &p)
		target = &p
	default:
		return nil, fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload for job %s: %w", job.Type, job.ID, err)
	}
	return target, nil
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed and counts the attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.Attempts++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
