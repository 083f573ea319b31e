// Package scheduler runs the periodic jobs of the live service
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradecore/internal/core"

	"golang.org/x/sync/errgroup"
)

// Default intervals of the live service jobs
const (
	DefaultMonitorInterval   = 30 * time.Second
	DefaultArbitrageInterval = 10 * time.Second
	DefaultRiskInterval      = 15 * time.Second
	DefaultAutosaveInterval  = 5 * time.Minute
)

// Task is a named job run on a fixed interval
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the interval.
	Timeout time.Duration
	// RunOnStart runs the task once before the first tick.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// TaskStatus reports the last outcome of a task
type TaskStatus struct {
	Name        string
	Runs        int
	Failures    int
	LastSuccess time.Time
	LastError   string
}

// Scheduler runs every registered task on its own ticker
type Scheduler struct {
	logger core.ILogger
	now    func() time.Time

	mu      sync.RWMutex
	tasks   []Task
	status  map[string]*TaskStatus
	started time.Time
	running bool
}

// New creates an empty scheduler
func New(logger core.ILogger) *Scheduler {
	return &Scheduler{
		logger: logger.WithField("component", "scheduler"),
		now:    time.Now,
		status: make(map[string]*TaskStatus),
	}
}

// Add registers a task. Tasks cannot be added while the scheduler runs.
func (s *Scheduler) Add(task Task) error {
	switch {
	case task.Name == "":
		return errors.New("task name is required")
	case task.Interval <= 0:
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	case task.Run == nil:
		return fmt.Errorf("task %s: run function is required", task.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("task %s: scheduler already running", task.Name)
	}
	if _, ok := s.status[task.Name]; ok {
		return fmt.Errorf("task %s: already registered", task.Name)
	}
	s.tasks = append(s.tasks, task)
	s.status[task.Name] = &TaskStatus{Name: task.Name}
	return nil
}

// Run blocks until ctx is cancelled. Task errors are logged and never stop the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.started = s.now()
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("Starting scheduler", "tasks", len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			s.loop(ctx, task)
			return nil
		})
	}
	err := g.Wait()
	s.logger.Info("Scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	if task.RunOnStart {
		s.runOnce(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = task.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := safeRun(runCtx, task.Run)
	if err != nil && ctx.Err() != nil {
		// shutdown interrupted the run
		return
	}

	s.mu.Lock()
	st := s.status[task.Name]
	st.Runs++
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	} else {
		st.LastSuccess = s.now()
		st.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Task failed", "task", task.Name, "error", err)
	}
}

func safeRun(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return run(ctx)
}

// Start runs the scheduler in the background
func (s *Scheduler) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = s.Run(ctx)
	}()
	return h
}

// Status returns a copy of every task's status
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *s.status[t.Name])
	}
	return out
}

// LastSuccess returns when the task last completed without error
func (s *Scheduler) LastSuccess(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.status[name]
	if !ok || st.LastSuccess.IsZero() {
		return time.Time{}, false
	}
	return st.LastSuccess, true
}

// HealthCheck returns a check that fails once the task has gone maxAge without a success.
// A task that has not succeeded yet is measured from the scheduler start.
func (s *Scheduler) HealthCheck(name string, maxAge time.Duration) func() error {
	return func() error {
		s.mu.RLock()
		defer s.mu.RUnlock()

		st, ok := s.status[name]
		if !ok {
			return fmt.Errorf("unknown task %s", name)
		}
		if s.started.IsZero() {
			return errors.New("scheduler not started")
		}
		ref := st.LastSuccess
		if ref.IsZero() {
			ref = s.started
		}
		if age := s.now().Sub(ref); age > maxAge {
			if st.LastError != "" {
				return fmt.Errorf("no success for %s: %s", age.Truncate(time.Second), st.LastError)
			}
			return fmt.Errorf("no success for %s", age.Truncate(time.Second))
		}
		return nil
	}
}

// Handle stops a scheduler started with Start
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Stop cancels the scheduler and waits for every task to return
func (h *Handle) Stop() error {
	h.cancel()
	<-h.done
	return h.err
}

// Done is closed once the scheduler has stopped
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
