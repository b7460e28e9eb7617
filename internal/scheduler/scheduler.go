// Package scheduler repeats the scrape cycle forever at a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// CycleFunc performs one unit of periodic work.
type CycleFunc func(ctx context.Context) error

// State is what the loop is currently doing.
type State string

const (
	// StateIdle means Run has not been called yet. Run enters StateCycling
	// straight away, so a running loop starts in the cycling state.
	StateIdle    State = "idle"
	StateCycling State = "cycling"
	StateWaiting State = "waiting"
	StateStopped State = "stopped"
)

// Status is a point-in-time view of the loop.
type Status struct {
	State          State     `json:"state"`
	Cycles         int       `json:"cycles"`
	Failures       int       `json:"failures"`
	LastStartedAt  time.Time `json:"last_started_at,omitzero"`
	LastFinishedAt time.Time `json:"last_finished_at,omitzero"`
	LastError      string    `json:"last_error,omitempty"`
	NextRunAt      time.Time `json:"next_run_at,omitzero"`
}

// Scheduler runs a cycle immediately, then again interval after each cycle
// finishes. A failing or panicking cycle is logged and the loop carries on.
type Scheduler struct {
	interval time.Duration
	cycle    CycleFunc
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a Scheduler.
func New(interval time.Duration, cycle CycleFunc, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if cycle == nil {
		return nil, fmt.Errorf("cycle func is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		cycle:    cycle,
		logger:   logger,
		status:   Status{State: StateIdle},
	}, nil
}

// Run loops until ctx is cancelled and then returns nil. A cycle in progress
// sees the cancellation through its context.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	defer func() {
		s.mu.Lock()
		s.status.State = StateStopped
		s.status.NextRunAt = time.Time{}
		s.mu.Unlock()
		s.logger.Info("scheduler stopped")
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		s.runOnce(ctx)

		s.mu.Lock()
		s.status.State = StateWaiting
		s.status.NextRunAt = time.Now().Add(s.interval)
		s.mu.Unlock()

		timer.Reset(s.interval)
	}
}

// runOnce executes one cycle, converting a panic into a logged failure.
func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	s.status.State = StateCycling
	s.status.LastStartedAt = time.Now()
	s.status.NextRunAt = time.Time{}
	s.mu.Unlock()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scrape cycle panicked", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("cycle panicked: %v", r)
			}
		}()
		return s.cycle(ctx)
	}()

	s.mu.Lock()
	s.status.Cycles++
	s.status.LastFinishedAt = time.Now()
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.logger.Error("scrape cycle failed", "err", err)
	}
}

// Status returns a copy of the current status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
