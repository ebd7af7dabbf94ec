package jobqueue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNames(t *testing.T) {
	tests := []struct {
		name     string
		queue    QueueName
		expected string
	}{
		{"Webhook Processing", QueueWebhookProcessing, "webhook_processing"},
		{"Batch Operations", QueueBatchOperations, "batch_operations"},
		{"Inventory Sync", QueueInventorySync, "inventory_sync"},
		{"Product Sync", QueueProductSync, "product_sync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.queue))
		})
	}
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{"Pending", JobStatusPending, "pending"},
		{"Processing", JobStatusProcessing, "processing"},
		{"Completed", JobStatusCompleted, "completed"},
		{"Failed", JobStatusFailed, "failed"},
		{"Retrying", JobStatusRetrying, "retrying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{
			name: "Failed job with attempts remaining",
			job: &Job{
				Status:      JobStatusFailed,
				Attempts:    1,
				MaxAttempts: 3,
			},
			retryable: true,
		},
		{
			name: "Failed job with no attempts remaining",
			job: &Job{
				Status:      JobStatusFailed,
				Attempts:    3,
				MaxAttempts: 3,
			},
			retryable: false,
		},
		{
			name: "Completed job",
			job: &Job{
				Status:      JobStatusCompleted,
				Attempts:    1,
				MaxAttempts: 3,
			},
			retryable: false,
		},
		{
			name: "Pending job",
			job: &Job{
				Status:      JobStatusPending,
				Attempts:    0,
				MaxAttempts: 3,
			},
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_MarkAsProcessing(t *testing.T) {
	job := &Job{
		Status: JobStatusPending,
	}

	beforeTime := time.Now()
	job.MarkAsProcessing()
	afterTime := time.Now()

	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.True(t, job.UpdatedAt.After(beforeTime) || job.UpdatedAt.Equal(beforeTime))
	assert.True(t, job.UpdatedAt.Before(afterTime) || job.UpdatedAt.Equal(afterTime))
	assert.NotNil(t, job.ProcessedAt)
}

func TestJob_MarkAsCompleted(t *testing.T) {
	job := &Job{
		Status:   JobStatusProcessing,
		ErrorMsg: "some error",
	}

	job.MarkAsCompleted()

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)
}

func TestJob_MarkAsFailed(t *testing.T) {
	job := &Job{
		Status:   JobStatusProcessing,
		Attempts: 1,
	}

	job.MarkAsFailed("processing failed")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "processing failed", job.ErrorMsg)
	assert.Equal(t, 2, job.Attempts)
}

func TestQueueOptions_Merge(t *testing.T) {
	defaults := DefaultQueueOptions()

	t.Run("empty overrides keep defaults", func(t *testing.T) {
		effective := defaults.merge(EnqueueOptions{})
		assert.Equal(t, defaults, effective)
	})

	t.Run("overrides replace only their fields", func(t *testing.T) {
		effective := defaults.merge(EnqueueOptions{
			Priority:    1,
			MaxAttempts: 5,
		})
		assert.Equal(t, 1, effective.Priority)
		assert.Equal(t, 5, effective.MaxAttempts)
		assert.Equal(t, defaults.BackoffBase, effective.BackoffBase)
		assert.Equal(t, defaults.RemoveOnComplete, effective.RemoveOnComplete)
	})

	t.Run("queue defaults are not mutated", func(t *testing.T) {
		before := defaults
		_ = defaults.merge(EnqueueOptions{Priority: 1, MaxAttempts: 9, BackoffBase: time.Minute})
		assert.Equal(t, before, defaults)
	})
}

func TestDefaultQueueOptions_Retention(t *testing.T) {
	opts := DefaultQueueOptions()

	assert.Equal(t, 24*time.Hour, opts.RemoveOnComplete.Age)
	assert.Equal(t, int64(1000), opts.RemoveOnComplete.Count)
	assert.Equal(t, 7*24*time.Hour, opts.RemoveOnFail.Age)
	assert.Equal(t, int64(5000), opts.RemoveOnFail.Count)
	assert.Equal(t, 3, opts.MaxAttempts)
}

func TestRefundLineItem_Restocks(t *testing.T) {
	tests := []struct {
		restockType string
		restocks    bool
	}{
		{RestockTypeReturn, true},
		{RestockTypeCancel, true},
		{RestockTypeNoRestock, false},
	}

	for _, tt := range tests {
		t.Run(tt.restockType, func(t *testing.T) {
			li := RefundLineItem{SKU: "SKU-1", Quantity: 1, RestockType: tt.restockType}
			assert.Equal(t, tt.restocks, li.Restocks())
		})
	}
}

func TestDecodePayload(t *testing.T) {
	mustRaw := func(v interface{}) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	t.Run("order payload", func(t *testing.T) {
		job := &Job{
			ID:   "job-1",
			Type: JobTypeOrderCreated,
			Payload: mustRaw(OrderPayload{
				OrderID:    "1001",
				ShopDomain: "alpha.example.com",
				LineItems:  []OrderLineItem{{SKU: "SKU-1", Quantity: 2}},
			}),
		}

		decoded, err := DecodePayload(job)
		require.NoError(t, err)

		payload, ok := decoded.(*OrderPayload)
		require.True(t, ok)
		assert.Equal(t, "1001", payload.OrderID)
		require.Len(t, payload.LineItems, 1)
		assert.Equal(t, 2, payload.LineItems[0].Quantity)
	})

	t.Run("refund payload", func(t *testing.T) {
		job := &Job{
			ID:   "job-2",
			Type: JobTypeRefundCreated,
			Payload: mustRaw(RefundPayload{
				OrderID:    "1001",
				ShopDomain: "alpha.example.com",
				LineItems: []RefundLineItem{
					{SKU: "SKU-1", Quantity: 1, RestockType: RestockTypeReturn},
					{SKU: "SKU-2", Quantity: 1, RestockType: RestockTypeNoRestock},
				},
			}),
		}

		decoded, err := DecodePayload(job)
		require.NoError(t, err)

		payload, ok := decoded.(*RefundPayload)
		require.True(t, ok)
		require.Len(t, payload.LineItems, 2)
		assert.True(t, payload.LineItems[0].Restocks())
		assert.False(t, payload.LineItems[1].Restocks())
	})

	t.Run("batch payload", func(t *testing.T) {
		job := &Job{
			ID:   "job-3",
			Type: JobTypeBatchOperation,
			Payload: mustRaw(BatchOperationPayload{
				OperationType: BatchOpBulkInventoryUpdate,
				StoreID:       7,
				ProductIDs:    []uint{1, 2, 3},
			}),
		}

		decoded, err := DecodePayload(job)
		require.NoError(t, err)

		payload, ok := decoded.(*BatchOperationPayload)
		require.True(t, ok)
		assert.Equal(t, uint(7), payload.StoreID)
		assert.Equal(t, []uint{1, 2, 3}, payload.ProductIDs)
	})

	t.Run("sync payloads", func(t *testing.T) {
		job := &Job{
			ID:      "job-4",
			Type:    JobTypeInventorySync,
			Payload: mustRaw(InventorySyncPayload{ProductID: 1, StoreID: 2}),
		}
		decoded, err := DecodePayload(job)
		require.NoError(t, err)
		require.IsType(t, &InventorySyncPayload{}, decoded)

		job = &Job{
			ID:      "job-5",
			Type:    JobTypeProductSync,
			Payload: mustRaw(ProductSyncPayload{ProductID: 1}),
		}
		decoded, err = DecodePayload(job)
		require.NoError(t, err)
		require.IsType(t, &ProductSyncPayload{}, decoded)
	})

	t.Run("unknown job type", func(t *testing.T) {
		job := &Job{ID: "job-6", Type: JobType("mystery"), Payload: mustRaw(map[string]string{})}
		decoded, err := DecodePayload(job)
		assert.Error(t, err)
		assert.Nil(t, decoded)
	})

	t.Run("malformed payload", func(t *testing.T) {
		job := &Job{ID: "job-7", Type: JobTypeOrderCreated, Payload: json.RawMessage(`{broken`)}
		decoded, err := DecodePayload(job)
		assert.Error(t, err)
		assert.Nil(t, decoded)
	})
}
