package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/StockPilotApp/StockPilot/internal/pkg/cache"
	"github.com/StockPilotApp/StockPilot/internal/pkg/shopclient"
)

// priorityLevels is the number of priority buckets per queue; workers drain
// bucket 1 before bucket 2 and so on.
const priorityLevels = 5

// Handler processes one job. Returning nil completes the job; a transient
// error schedules a retry with exponential backoff; a permanent error (see
// shopclient.IsPermanent) fails the job immediately.
type Handler func(ctx context.Context, job *Job) error

// Queue is one named Redis-backed job queue with its own defaults, retention
// policy and worker pool.
type Queue struct {
	name       QueueName
	client     *redis.Client
	defaults   QueueOptions
	handler    Handler
	workerPool chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a queue with the given immutable defaults
func NewQueue(name QueueName, defaults QueueOptions, handler Handler) *Queue {
	if defaults.Workers <= 0 {
		defaults.Workers = 3
	}

	return &Queue{
		name:       name,
		client:     cache.GetClient(),
		defaults:   defaults,
		handler:    handler,
		workerPool: make(chan struct{}, defaults.Workers),
		stopCh:     make(chan struct{}),
	}
}

// Name returns the queue name
func (q *Queue) Name() QueueName {
	return q.name
}

// Defaults returns a copy of the queue's default options
func (q *Queue) Defaults() QueueOptions {
	return q.defaults
}

func (q *Queue) jobKey(id string) string {
	return fmt.Sprintf("queue:%s:job:%s", q.name, id)
}

func (q *Queue) pendingKey(priority int) string {
	return fmt.Sprintf("queue:%s:pending:p%d", q.name, priority)
}

func (q *Queue) processingKey() string {
	return fmt.Sprintf("queue:%s:processing", q.name)
}

func (q *Queue) completedKey() string {
	return fmt.Sprintf("queue:%s:completed", q.name)
}

func (q *Queue) failedKey() string {
	return fmt.Sprintf("queue:%s:failed", q.name)
}

func (q *Queue) statsKey() string {
	return fmt.Sprintf("queue:%s:stats", q.name)
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > priorityLevels {
		return priorityLevels
	}
	return p
}

// Enqueue adds a job with the merged queue/per-call options. The job id is
// the idempotency key: enqueueing an id that is already queued or already
// processed returns the existing job's handle and never errors.
func (q *Queue) Enqueue(jobType JobType, payload interface{}, opts EnqueueOptions) (*Job, error) {
	ctx := context.Background()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	effective := q.defaults.merge(opts)

	id := opts.JobID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now()
	job := &Job{
		ID:          id,
		Queue:       q.name,
		Type:        jobType,
		Status:      JobStatusPending,
		Payload:     data,
		Priority:    clampPriority(effective.Priority),
		Attempts:    0,
		MaxAttempts: effective.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	// SETNX on the job key enforces the idempotency invariant: a duplicate
	// id leaves the stored job untouched. A key that expires between the
	// failed SETNX and the read-back is re-claimed as a fresh enqueue so
	// the caller never receives a nil job without an error.
	for attempt := 0; ; attempt++ {
		set, err := q.client.SetNX(ctx, q.jobKey(id), jobData, q.defaults.RemoveOnFail.Age).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue job %s: %w", id, err)
		}
		if set {
			break
		}
		existing, err := q.GetJob(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("duplicate job %s exists but could not be read: %w", id, err)
		}
		if existing != nil {
			log.Debugf("[JobQueue:%s] Duplicate enqueue for job %s ignored", q.name, id)
			return existing, nil
		}
		if attempt >= 2 {
			return nil, fmt.Errorf("job %s key vanished while enqueueing", id)
		}
	}

	pipe := q.client.Pipeline()
	pipe.LPush(ctx, q.pendingKey(job.Priority), job.ID)
	pipe.HIncrBy(ctx, q.statsKey(), string(JobStatusPending), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", id, err)
	}

	log.Infof("[JobQueue:%s] Enqueued job %s (type: %s, priority: %d)", q.name, job.ID, job.Type, job.Priority)
	return job, nil
}

// Start starts the queue workers and the stuck-job sweeper
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	log.Infof("[JobQueue:%s] Starting %d workers", q.name, q.defaults.Workers)

	for i := 0; i < q.defaults.Workers; i++ {
		q.workerPool <- struct{}{}
	}

	for i := 0; i < q.defaults.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	// Recovers jobs stuck in processing after a crash
	q.wg.Add(1)
	go q.stuckSweeper(10*time.Minute, 1*time.Minute)
}

// Stop stops the queue workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Infof("[JobQueue:%s] Stopping workers...", q.name)
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Infof("[JobQueue:%s] All workers stopped", q.name)
}

// worker processes jobs from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue:%s] Worker %d started", q.name, id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue:%s] Worker %d stopping", q.name, id)
			return
		default:
			// Acquire worker slot
			<-q.workerPool

			job, err := q.dequeueJob(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[JobQueue:%s] Worker %d: Error dequeuing job: %v", q.name, id, err)
				}
				// Release worker slot and wait before retry
				q.workerPool <- struct{}{}
				time.Sleep(time.Second)
				continue
			}

			if job != nil {
				log.Infof("[JobQueue:%s] Worker %d processing job %s (type: %s)", q.name, id, job.ID, job.Type)
				q.processJob(ctx, job)
			}

			q.workerPool <- struct{}{}
		}
	}
}

// dequeueJob moves the next job to the processing list, draining priority
// buckets in ascending order.
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	var jobID string
	for p := 1; p <= priorityLevels; p++ {
		id, err := q.client.LMove(ctx, q.pendingKey(p), q.processingKey(), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobID = id
		break
	}
	if jobID == "" {
		return nil, redis.Nil
	}

	jobData, err := q.client.Get(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		// Job data not found (cancelled or expired); drop the stray entry
		q.client.LRem(ctx, q.processingKey(), 1, jobID)
		return nil, fmt.Errorf("job data not found for ID %s", jobID)
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		q.client.LRem(ctx, q.processingKey(), 1, jobID)
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}

	return &job, nil
}

// processJob runs the handler and applies the retry/retention policy
func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)

	var err error
	if q.handler == nil {
		err = fmt.Errorf("no handler registered for queue %s", q.name)
	} else {
		err = q.handler(ctx, job)
	}

	if err != nil {
		log.Errorf("[JobQueue:%s] Job %s failed: %v", q.name, job.ID, err)
		job.MarkAsFailed(err.Error())

		if job.IsRetryable() && !shopclient.IsPermanent(err) {
			delay := q.backoffDelay(job.Attempts)
			log.Infof("[JobQueue:%s] Retrying job %s in %s (attempt %d/%d)", q.name, job.ID, delay, job.Attempts, job.MaxAttempts)
			job.MarkAsRetrying()
			q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)

			jobID := job.ID
			priority := job.Priority
			time.AfterFunc(delay, func() {
				q.requeueForRetry(context.Background(), jobID, priority)
			})
		} else {
			log.Errorf("[JobQueue:%s] Job %s permanently failed after %d attempts", q.name, job.ID, job.Attempts)
			q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)
			q.recordTerminal(ctx, q.failedKey(), job.ID, q.defaults.RemoveOnFail)
			q.updateStats(ctx, JobStatusFailed, 1)
		}
	} else {
		log.Infof("[JobQueue:%s] Job %s completed successfully", q.name, job.ID)
		job.MarkAsCompleted()
		q.updateJob(ctx, job, q.defaults.RemoveOnComplete.Age)
		q.recordTerminal(ctx, q.completedKey(), job.ID, q.defaults.RemoveOnComplete)
		q.updateStats(ctx, JobStatusCompleted, 1)
	}

	q.client.LRem(ctx, q.processingKey(), 1, job.ID)
}

// backoffDelay returns the exponential retry delay for the given attempt
func (q *Queue) backoffDelay(attempt int) time.Duration {
	delay := q.defaults.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// requeueForRetry pushes a previously failed job back to its pending bucket.
// If the job was cancelled in the meantime, nothing happens.
func (q *Queue) requeueForRetry(ctx context.Context, jobID string, priority int) {
	job, err := q.GetJob(ctx, jobID)
	if err != nil || job == nil {
		return
	}
	if job.Status != JobStatusRetrying {
		return
	}

	job.Status = JobStatusPending
	job.UpdatedAt = time.Now()
	q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)

	if err := q.client.RPush(ctx, q.pendingKey(priority), jobID).Err(); err != nil {
		log.Errorf("[JobQueue:%s] Failed to requeue job %s: %v", q.name, jobID, err)
	}
}

// recordTerminal tracks a finished job id under the queue's retention policy
func (q *Queue) recordTerminal(ctx context.Context, key, jobID string, policy RetentionPolicy) {
	pipe := q.client.Pipeline()
	pipe.LPush(ctx, key, jobID)
	if policy.Count > 0 {
		pipe.LTrim(ctx, key, 0, policy.Count-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[JobQueue:%s] Failed to record terminal job %s: %v", q.name, jobID, err)
	}
}

// updateJob persists job data with the given TTL
func (q *Queue) updateJob(ctx context.Context, job *Job, ttl time.Duration) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue:%s] Failed to marshal job %s: %v", q.name, job.ID, err)
		return
	}

	if err := q.client.Set(ctx, q.jobKey(job.ID), jobData, ttl).Err(); err != nil {
		log.Errorf("[JobQueue:%s] Failed to update job %s: %v", q.name, job.ID, err)
	}
}

// updateStats updates job statistics
func (q *Queue) updateStats(ctx context.Context, status JobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, q.statsKey(), string(status), delta).Err(); err != nil {
		log.Errorf("[JobQueue:%s] Failed to update job stats: %v", q.name, err)
	}
}

// GetJob retrieves a job by ID; returns (nil, nil) when the job is unknown
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobData, err := q.client.Get(ctx, q.jobKey(jobID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// CancelJob removes a queued-but-not-started job. It returns false when the
// job does not exist or is already being processed; cancelling a nonexistent
// job is not a failure condition. An in-flight job is not preemptible:
// cancellation only prevents a future attempt from starting.
func (q *Queue) CancelJob(ctx context.Context, jobID string) (bool, error) {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	switch job.Status {
	case JobStatusPending, JobStatusRetrying:
		for p := 1; p <= priorityLevels; p++ {
			q.client.LRem(ctx, q.pendingKey(p), 0, jobID)
		}
		if err := q.client.Del(ctx, q.jobKey(jobID)).Err(); err != nil {
			return false, err
		}
		log.Infof("[JobQueue:%s] Cancelled job %s", q.name, jobID)
		return true, nil
	default:
		return false, nil
	}
}

// RetryJob re-schedules a previously failed job for immediate execution.
// Returns false when the job does not exist or is not in a failed state.
func (q *Queue) RetryJob(ctx context.Context, jobID string) (bool, error) {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil || job.Status != JobStatusFailed {
		return false, nil
	}

	job.Status = JobStatusPending
	job.UpdatedAt = time.Now()
	q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)

	// RPush so the retried job is picked up ahead of the backlog
	if err := q.client.RPush(ctx, q.pendingKey(job.Priority), jobID).Err(); err != nil {
		return false, err
	}
	q.client.LRem(ctx, q.failedKey(), 0, jobID)

	log.Infof("[JobQueue:%s] Re-scheduled failed job %s", q.name, jobID)
	return true, nil
}

// stuckSweeper periodically requeues jobs stuck in processing longer than maxAge
func (q *Queue) stuckSweeper(maxAge time.Duration, interval time.Duration) {
	defer q.wg.Done()
	log.Infof("[JobQueue:%s] Stuck sweeper running (maxAge=%s, interval=%s)", q.name, maxAge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue:%s] Stuck sweeper stopping", q.name)
			return
		case <-ticker.C:
			ids, err := q.client.LRange(ctx, q.processingKey(), 0, -1).Result()
			if err != nil {
				log.Errorf("[JobQueue:%s] Sweeper LRange error: %v", q.name, err)
				continue
			}
			now := time.Now()
			for _, id := range ids {
				job, err := q.GetJob(ctx, id)
				if err != nil || job == nil {
					_ = q.client.LRem(ctx, q.processingKey(), 1, id).Err()
					continue
				}
				if job.Status != JobStatusProcessing {
					// Clean up stray entry
					_ = q.client.LRem(ctx, q.processingKey(), 1, id).Err()
					continue
				}
				started := job.ProcessedAt
				if started == nil || started.IsZero() {
					tmp := job.UpdatedAt
					if tmp.IsZero() {
						tmp = job.CreatedAt
					}
					started = &tmp
				}
				if now.Sub(*started) > maxAge {
					log.Warnf("[JobQueue:%s] Recovering stuck job %s (type=%s), age=%s", q.name, job.ID, job.Type, now.Sub(*started))
					job.Status = JobStatusPending
					job.ErrorMsg = "recovered by sweeper"
					job.UpdatedAt = now
					q.updateJob(ctx, job, q.defaults.RemoveOnFail.Age)
					_ = q.client.LRem(ctx, q.processingKey(), 1, id).Err()
					_ = q.client.RPush(ctx, q.pendingKey(job.Priority), id).Err()
				}
			}
		}
	}
}

// GetStats returns counters of finished job statuses
func (q *Queue) GetStats(ctx context.Context) (map[JobStatus]int64, error) {
	stats, err := q.client.HGetAll(ctx, q.statsKey()).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[JobStatus]int64)
	for status, count := range stats {
		if countInt, err := json.Number(count).Int64(); err == nil {
			result[JobStatus(status)] = countInt
		}
	}

	return result, nil
}

// GetPendingSize returns the number of queued jobs across all priorities
func (q *Queue) GetPendingSize(ctx context.Context) (int64, error) {
	var total int64
	for p := 1; p <= priorityLevels; p++ {
		n, err := q.client.LLen(ctx, q.pendingKey(p)).Result()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// GetProcessingSize returns the number of jobs being processed
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.processingKey()).Result()
}
