// Package concurrency wraps alitto/pond with the project's logging and defaults
package concurrency

import (
	"fmt"
	"sync"
	"time"

	"tradecore/internal/core"

	"github.com/alitto/pond"
)

// PoolConfig holds configuration for a worker pool
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	NonBlocking bool // Submit returns an error instead of blocking when full
}

// WorkerPool wraps alitto/pond with standardized config
type WorkerPool struct {
	pool   *pond.WorkerPool
	config PoolConfig
	logger core.ILogger
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 100
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := logger.WithField("component", "worker_pool").WithField("pool", cfg.Name)

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			log.Error("Worker pool panic recovered", "panic", p)
		}),
	)

	return &WorkerPool{
		pool:   pool,
		config: cfg,
		logger: log,
	}
}

// Submit adds a task to the pool
func (wp *WorkerPool) Submit(task func()) error {
	if wp.config.NonBlocking {
		if !wp.pool.TrySubmit(task) {
			return fmt.Errorf("worker pool '%s' is full (capacity: %d)", wp.config.Name, wp.config.MaxCapacity)
		}
		return nil
	}
	wp.pool.Submit(task)
	return nil
}

// RunAll runs every task on the pool and waits for all of them.
// Tasks the pool refuses are reported by index and not run.
func (wp *WorkerPool) RunAll(tasks []func()) []int {
	var (
		wg       sync.WaitGroup
		rejected []int
	)
	for i, task := range tasks {
		task := task
		wg.Add(1)
		err := wp.Submit(func() {
			defer wg.Done()
			task()
		})
		if err != nil {
			wg.Done()
			wp.logger.Warn("Task rejected", "index", i, "error", err)
			rejected = append(rejected, i)
		}
	}
	wg.Wait()
	return rejected
}

// Stop stops the pool gracefully
func (wp *WorkerPool) Stop() {
	wp.pool.StopAndWait()
}

// PoolStats is a point-in-time view of pool load
type PoolStats struct {
	RunningWorkers  int    `json:"running_workers"`
	IdleWorkers     int    `json:"idle_workers"`
	SubmittedTasks  uint64 `json:"submitted_tasks"`
	WaitingTasks    uint64 `json:"waiting_tasks"`
	SuccessfulTasks uint64 `json:"successful_tasks"`
	FailedTasks     uint64 `json:"failed_tasks"`
}

// Stats returns pool statistics
func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		RunningWorkers:  wp.pool.RunningWorkers(),
		IdleWorkers:     wp.pool.IdleWorkers(),
		SubmittedTasks:  wp.pool.SubmittedTasks(),
		WaitingTasks:    wp.pool.WaitingTasks(),
		SuccessfulTasks: wp.pool.SuccessfulTasks(),
		FailedTasks:     wp.pool.FailedTasks(),
	}
}

// CheckHealth fails while the queue is full
func (wp *WorkerPool) CheckHealth() error {
	st := wp.Stats()
	if st.WaitingTasks >= uint64(wp.config.MaxCapacity) {
		return fmt.Errorf("worker pool '%s' saturated: %d waiting, capacity %d, %d running",
			wp.config.Name, st.WaitingTasks, wp.config.MaxCapacity, st.RunningWorkers)
	}
	return nil
}
