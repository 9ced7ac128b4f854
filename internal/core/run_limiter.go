package core

// run_limiter.go gates triggered runs.
//
// A run holds the single slot for its whole duration. Callers that arrive
// while a run is in progress wait up to maxWait for it to finish, then give
// up with ErrRunInProgress. The watch loop uses TryAcquire so a tick that
// lands mid-run is simply skipped.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when another run holds the slot and the wait
// timeout expires.
var ErrRunInProgress = errors.New("a run is already in progress, please try again later")

// DefaultRunWait is how long a trigger waits for the current run to finish.
const DefaultRunWait = 5 * time.Second

// RunLimiter serializes runs using a one-slot semaphore.
type RunLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu      sync.RWMutex
	active  bool
	started time.Time
}

// NewRunLimiter creates a limiter whose Acquire waits at most maxWait.
func NewRunLimiter(maxWait time.Duration) *RunLimiter {
	if maxWait <= 0 {
		maxWait = DefaultRunWait
	}
	return &RunLimiter{
		semaphore: make(chan struct{}, 1),
		maxWait:   maxWait,
	}
}

// Acquire takes the run slot, waiting up to maxWait.
// The caller MUST call Release() when the run completes (use defer).
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.markActive()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRunInProgress
	}
}

// TryAcquire takes the slot without blocking.
func (l *RunLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.markActive()
		return true
	default:
		return false
	}
}

func (l *RunLimiter) markActive() {
	l.mu.Lock()
	l.active = true
	l.started = time.Now()
	l.mu.Unlock()
}

// Release frees the slot. Must be called exactly once per successful acquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.active = false
	l.started = time.Time{}
	l.mu.Unlock()

	<-l.semaphore
}

// WaitForDrain blocks until no run is active or ctx is done.
// Used on shutdown so an in-flight run can commit.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Status().Active {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter state.
type RunLimiterStatus struct {
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// Status returns the current limiter state for monitoring.
func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return RunLimiterStatus{Active: l.active, StartedAt: l.started}
}
