package fcm

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrCleanupInProgress is returned when another cleanup run holds the guard.
var ErrCleanupInProgress = errors.New("token cleanup already in progress")

// CooldownError is returned when cleanup is requested before the cooldown
// since the last completed run has elapsed.
type CooldownError struct {
	MinutesRemaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("token cleanup on cooldown, retry in %d minute(s)", e.MinutesRemaining)
}

// RunGuard enforces the single-flight and cooldown policy for the cleanup
// job. The check and the in-progress flip happen under one mutex, so two
// concurrent callers can never both acquire it.
//
// The guard is per-process. Running multiple service instances against the
// same database needs an external lease to keep the at-most-one-run
// guarantee.
type RunGuard struct {
	mu         sync.Mutex
	inProgress bool
	lastRun    time.Time
	cooldown   time.Duration
	now        func() time.Time
}

func NewRunGuard(cooldown time.Duration) *RunGuard {
	return &RunGuard{
		cooldown: cooldown,
		now:      time.Now,
	}
}

// TryAcquire claims the guard or reports why it cannot be claimed.
func (g *RunGuard) TryAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inProgress {
		return ErrCleanupInProgress
	}

	if elapsed := g.now().Sub(g.lastRun); elapsed < g.cooldown {
		remaining := g.cooldown - elapsed
		return &CooldownError{
			MinutesRemaining: int(math.Ceil(remaining.Minutes())),
		}
	}

	g.inProgress = true
	return nil
}

// Release frees the guard. The cooldown timestamp is stamped only when the
// run completed normally, so a failed run can be retried immediately.
func (g *RunGuard) Release(completed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.inProgress = false
	if completed {
		g.lastRun = g.now()
	}
}
