package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/StockPilotApp/StockPilot/app/repository"
	"github.com/StockPilotApp/StockPilot/internal/pkg/cache"
	"github.com/StockPilotApp/StockPilot/internal/pkg/shopclient"
	"github.com/StockPilotApp/StockPilot/internal/pkg/syncengine"
)

// Manager owns the queue registry, the sync engine the consumers drive, and
// the background tasks around them.
type Manager struct {
	registry    *Registry
	engine      *syncengine.Engine
	repos       *repository.Repositories
	statsTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		repos := repository.GetGlobalRepositories()
		engine := syncengine.NewEngine(
			repos,
			shopclient.NewHTTPClient(10*time.Second),
			syncengine.NewRedisLocker(cache.GetClient(), 30*time.Second),
		)
		globalManager = NewManager(repos, engine)
	})
	return globalManager
}

// NewManager builds a manager with the four named queues wired to their
// consumers. Tests construct their own manager with fake collaborators.
func NewManager(repos *repository.Repositories, engine *syncengine.Engine) *Manager {
	m := &Manager{
		registry: NewRegistry(),
		engine:   engine,
		repos:    repos,
		stopCh:   make(chan struct{}),
	}

	webhookDefaults := DefaultQueueOptions()
	webhookDefaults.Priority = PriorityStockEvents

	batchDefaults := DefaultQueueOptions()
	batchDefaults.Priority = PriorityBatch
	// Bulk operations tolerate more retries; they are not user-latency-sensitive
	batchDefaults.MaxAttempts = 5

	m.registry.Register(NewQueue(QueueWebhookProcessing, webhookDefaults, m.processWebhookJob))
	m.registry.Register(NewQueue(QueueBatchOperations, batchDefaults, m.processBatchJob))
	m.registry.Register(NewQueue(QueueInventorySync, DefaultQueueOptions(), m.processSyncJob))
	m.registry.Register(NewQueue(QueueProductSync, DefaultQueueOptions(), m.processSyncJob))

	return m
}

// GetRegistry returns the managed queue registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetEngine returns the sync engine driven by the consumers
func (m *Manager) GetEngine() *syncengine.Engine {
	return m.engine
}

// Start starts the queue workers and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting queues and background tasks")

	m.registry.Start()

	// Periodic queue depth heartbeat for operators
	m.statsTicker = time.NewTicker(time.Minute)
	m.wg.Add(1)
	go m.statsWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the queue workers and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping queues and background tasks...")

	if m.statsTicker != nil {
		m.statsTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.registry.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// statsWorker periodically logs queue depths
func (m *Manager) statsWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Stats worker stopping")
			return
		case <-m.statsTicker.C:
			ctx := context.Background()
			for _, name := range m.registry.Names() {
				q, err := m.registry.Get(name)
				if err != nil {
					continue
				}
				pending, _ := q.GetPendingSize(ctx)
				processing, _ := q.GetProcessingSize(ctx)
				if pending > 0 || processing > 0 {
					log.Infof("[JobQueue Manager] Queue %s: %d pending, %d processing", name, pending, processing)
				}
			}
		}
	}
}
