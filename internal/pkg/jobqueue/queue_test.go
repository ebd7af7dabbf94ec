package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StockPilotApp/StockPilot/internal/pkg/cache"
	"github.com/StockPilotApp/StockPilot/internal/pkg/shopclient"
)

func TestQueue_EnqueueIdempotent(t *testing.T) {
	q := newTestQueue(t, nil, nil)
	ctx := context.Background()

	payload := InventorySyncPayload{ProductID: 1, StoreID: 2}
	opts := EnqueueOptions{JobID: "evt-123"}

	first, err := q.Enqueue(JobTypeInventorySync, payload, opts)
	require.NoError(t, err)
	assert.Equal(t, "evt-123", first.ID)
	assert.Equal(t, JobStatusPending, first.Status)

	// The duplicate returns the existing job's handle and enqueues nothing
	second, err := q.Enqueue(JobTypeInventorySync, payload, opts)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

	pending, err := q.GetPendingSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestQueue_EnqueueReclaimsExpiredJobKey(t *testing.T) {
	q := newTestQueue(t, nil, nil)
	ctx := context.Background()

	payload := InventorySyncPayload{ProductID: 1, StoreID: 2}
	opts := EnqueueOptions{JobID: "evt-456"}

	first, err := q.Enqueue(JobTypeInventorySync, payload, opts)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Retention expiry of the job key must not turn a later enqueue of the
	// same id into a (nil, nil) handle; it is accepted as a fresh job
	require.NoError(t, cache.GetClient().Del(ctx, q.jobKey(first.ID)).Err())

	second, err := q.Enqueue(JobTypeInventorySync, payload, opts)
	require.NoError(t, err)
	require.NotNil(t, second, "a duplicate enqueue must never return a nil job without an error")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, JobStatusPending, second.Status)

	stored, err := q.GetJob(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestQueue_EnqueueGeneratesID(t *testing.T) {
	q := newTestQueue(t, nil, nil)

	first, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{})
	require.NoError(t, err)
	second, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestQueue_DequeuePriorityOrder(t *testing.T) {
	q := newTestQueue(t, nil, nil)
	ctx := context.Background()

	low, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{JobID: "low", Priority: 3})
	require.NoError(t, err)
	high, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 2}, EnqueueOptions{JobID: "high", Priority: 1})
	require.NoError(t, err)

	// The priority-1 bucket is drained before the priority-3 bucket even
	// though the low-priority job was enqueued first
	got, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, high.ID, got.ID)

	got, err = q.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, low.ID, got.ID)
}

func TestQueue_GetJobUnknown(t *testing.T) {
	q := newTestQueue(t, nil, nil)

	job, err := q.GetJob(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_CancelJob(t *testing.T) {
	q := newTestQueue(t, nil, nil)
	ctx := context.Background()

	t.Run("pending job is cancelled", func(t *testing.T) {
		job, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{JobID: "cancel-me"})
		require.NoError(t, err)

		ok, err := q.CancelJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		gone, err := q.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		pending, err := q.GetPendingSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), pending)
	})

	t.Run("unknown job is not an error", func(t *testing.T) {
		ok, err := q.CancelJob(ctx, "no-such-job")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("processing job is not preemptible", func(t *testing.T) {
		job, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 2}, EnqueueOptions{JobID: "in-flight"})
		require.NoError(t, err)

		job.MarkAsProcessing()
		q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)

		ok, err := q.CancelJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestQueue_RetryJob(t *testing.T) {
	q := newTestQueue(t, nil, nil)
	ctx := context.Background()

	t.Run("failed job is rescheduled", func(t *testing.T) {
		job, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{JobID: "failed-job"})
		require.NoError(t, err)

		// Drain the pending entry, then fail the job terminally
		_, err = q.dequeueJob(ctx)
		require.NoError(t, err)
		job.MarkAsFailed("boom")
		job.Attempts = job.MaxAttempts
		q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)
		q.recordTerminal(ctx, q.failedKey(), job.ID, q.defaults.RemoveOnFail)

		ok, err := q.RetryJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		rescheduled, err := q.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, rescheduled)
		assert.Equal(t, JobStatusPending, rescheduled.Status)
	})

	t.Run("non-failed job is not rescheduled", func(t *testing.T) {
		job, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 2}, EnqueueOptions{JobID: "still-pending"})
		require.NoError(t, err)

		ok, err := q.RetryJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown job is not rescheduled", func(t *testing.T) {
		ok, err := q.RetryJob(ctx, "no-such-job")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestQueue_ProcessJob_TransientFailureSchedulesRetry(t *testing.T) {
	// Large backoff keeps the retry timer from firing inside the test
	q := newTestQueue(t, func(ctx context.Context, job *Job) error {
		return errors.New("temporarily unavailable")
	}, func(o *QueueOptions) {
		o.BackoffBase = time.Hour
	})
	ctx := context.Background()

	job, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{JobID: "flaky"})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	after, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, JobStatusRetrying, after.Status)
	assert.Equal(t, 1, after.Attempts)
}

func TestQueue_ProcessJob_PermanentFailureSkipsRetry(t *testing.T) {
	q := newTestQueue(t, func(ctx context.Context, job *Job) error {
		return &shopclient.PermanentError{StatusCode: 422, Message: "unknown sku"}
	}, nil)
	ctx := context.Background()

	job, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{JobID: "rejected"})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	after, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, JobStatusFailed, after.Status)
	assert.Equal(t, 1, after.Attempts)
}

func TestQueue_ProcessJob_Success(t *testing.T) {
	q := newTestQueue(t, func(ctx context.Context, job *Job) error {
		return nil
	}, nil)
	ctx := context.Background()

	job, err := q.Enqueue(JobTypeProductSync, ProductSyncPayload{ProductID: 1}, EnqueueOptions{JobID: "fine"})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	after, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, JobStatusCompleted, after.Status)
	assert.NotNil(t, after.CompletedAt)

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)
}

func TestQueue_BackoffDelay(t *testing.T) {
	q := &Queue{defaults: QueueOptions{BackoffBase: time.Second}}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, q.backoffDelay(tt.attempt))
	}
}
