package jobqueue

import (
	"context"
	"fmt"
)

// Registry maps queue names to queue handles. Lookups name a queue
// explicitly; the multi-queue probe across all queues is an opt-in
// convenience that checks them in a fixed order.
type Registry struct {
	queues map[QueueName]*Queue
	order  []QueueName
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		queues: make(map[QueueName]*Queue),
	}
}

// Register adds a queue under its name. Registration order fixes the probe
// order of the multi-queue lookups.
func (r *Registry) Register(q *Queue) {
	if _, exists := r.queues[q.Name()]; exists {
		return
	}
	r.queues[q.Name()] = q
	r.order = append(r.order, q.Name())
}

// Get returns the queue registered under name
func (r *Registry) Get(name QueueName) (*Queue, error) {
	q, ok := r.queues[name]
	if !ok {
		return nil, fmt.Errorf("unknown queue: %s", name)
	}
	return q, nil
}

// Names returns the registered queue names in probe order
func (r *Registry) Names() []QueueName {
	names := make([]QueueName, len(r.order))
	copy(names, r.order)
	return names
}

// GetJob looks a job up by id. With a queue name it checks only that queue;
// without one it probes all queues in registration order and returns the
// first match, or (nil, nil) when the job is unknown everywhere.
func (r *Registry) GetJob(ctx context.Context, jobID string, queueName QueueName) (*Job, error) {
	if queueName != "" {
		q, err := r.Get(queueName)
		if err != nil {
			return nil, err
		}
		return q.GetJob(ctx, jobID)
	}

	for _, name := range r.order {
		job, err := r.queues[name].GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
	}
	return nil, nil
}

// CancelJob cancels a job by id, probing queues like GetJob. Returns false
// when the job does not exist anywhere; that is not a failure condition.
func (r *Registry) CancelJob(ctx context.Context, jobID string, queueName QueueName) (bool, error) {
	if queueName != "" {
		q, err := r.Get(queueName)
		if err != nil {
			return false, err
		}
		return q.CancelJob(ctx, jobID)
	}

	for _, name := range r.order {
		ok, err := r.queues[name].CancelJob(ctx, jobID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// RetryJob re-schedules a failed job by id, probing queues like GetJob.
// Returns false when no queue holds a failed job with that id.
func (r *Registry) RetryJob(ctx context.Context, jobID string, queueName QueueName) (bool, error) {
	if queueName != "" {
		q, err := r.Get(queueName)
		if err != nil {
			return false, err
		}
		return q.RetryJob(ctx, jobID)
	}

	for _, name := range r.order {
		ok, err := r.queues[name].RetryJob(ctx, jobID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Enqueue routes a translated job request to its queue
func (r *Registry) Enqueue(req JobRequest) (*Job, error) {
	q, err := r.Get(req.Queue)
	if err != nil {
		return nil, err
	}
	return q.Enqueue(req.Type, req.Payload, req.Options)
}

// Start starts all registered queues
func (r *Registry) Start() {
	for _, name := range r.order {
		r.queues[name].Start()
	}
}

// Stop stops all registered queues
func (r *Registry) Stop() {
	for _, name := range r.order {
		r.queues[name].Stop()
	}
}
