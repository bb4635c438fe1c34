package jobqueue

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
	metrics "github.com/cloudvps-cz/CloudVPS/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	reconcileTicker    *time.Ticker
	counterFlushTicker *time.Ticker
	findStuck          func(olderThan time.Duration) ([]string, error)
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := env.GetEnvInt("JOB_WORKER_COUNT", 5)

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// SetReconciler installs the lookup for lifecycles stuck in
// payment_authorized. The manager re-enqueues a mark-paid job for each,
// closing the gap left by a crash between callback and mark-paid.
func (m *Manager) SetReconciler(findStuck func(olderThan time.Duration) ([]string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findStuck = findStuck
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Start the authorized-but-unpaid reconciler
	reconcileInterval := time.Duration(env.GetEnvInt("JOB_RECONCILE_INTERVAL_MINUTES", 5)) * time.Minute
	m.reconcileTicker = time.NewTicker(reconcileInterval)
	m.wg.Add(1)
	go m.reconcileWorker(m.stopCh)

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker(m.stopCh)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers to stop. The channel stays non-nil until Start
	// recreates it; workers hold their own reference anyway.
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// reconcileWorker periodically re-enqueues mark-paid jobs for lifecycles
// that stayed in payment_authorized too long.
func (m *Manager) reconcileWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Info("[JobQueue Manager] Started payment reconcile worker")

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Reconcile worker stopping")
			return
		case <-m.reconcileTicker.C:
			if err := m.reconcileOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Reconcile error: %v", err)
			}
		}
	}
}

func (m *Manager) reconcileOnce() error {
	m.mu.Lock()
	findStuck := m.findStuck
	m.mu.Unlock()

	if findStuck == nil {
		return nil
	}

	maxAge := time.Duration(env.GetEnvInt("JOB_RECONCILE_MAX_AGE_MINUTES", 10)) * time.Minute
	correlationIDs, err := findStuck(maxAge)
	if err != nil {
		return err
	}

	for _, id := range correlationIDs {
		log.Warnf("[JobQueue Manager] Re-enqueueing mark-paid for stuck lifecycle %s", id)
		if _, err := m.queue.EnqueueJob(JobTypeMarkInvoicePaid, MarkInvoicePaidJobPayload{CorrelationID: id}.ToMap()); err != nil {
			log.Errorf("[JobQueue Manager] Failed to enqueue reconcile job for %s: %v", id, err)
		}
	}
	return nil
}

// counterFlushWorker periodically flushes pending counters from Redis to DB
func (m *Manager) counterFlushWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunReconcileOnce exposes a manual trigger for a single reconcile sweep (admin use).
func (m *Manager) RunReconcileOnce() error {
	return m.reconcileOnce()
}
