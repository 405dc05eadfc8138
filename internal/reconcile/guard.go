package reconcile

import (
	"errors"
	"sync"
)

// ErrRunInProgress is returned when a reconciliation run for the user is
// already executing.
var ErrRunInProgress = errors.New("reconciliation already in progress for user")

// UserGuard serializes reconciliation per user. Two concurrent runs for the
// same user could both select the same unprocessed transaction before either
// write lands, so the runner takes the guard before touching storage.
type UserGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewUserGuard creates an empty guard.
func NewUserGuard() *UserGuard {
	return &UserGuard{running: make(map[string]bool)}
}

// TryAcquire marks the user as running. Returns false when a run is already
// in flight for that user.
func (g *UserGuard) TryAcquire(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[userID] {
		return false
	}
	g.running[userID] = true
	return true
}

// Release clears the running mark. Safe to call for a user that was never
// acquired.
func (g *UserGuard) Release(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, userID)
}

// Busy reports whether a run is currently in flight for the user. Advisory
// only: the answer can change the moment the lock is dropped.
func (g *UserGuard) Busy(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[userID]
}
