package application

import (
	"fmt"
	"sync"
)

// RefreshKey returns the in-flight lock key for a repository refresh.
func RefreshKey(userID string, serverID, repoID int64) string {
	return fmt.Sprintf("%s_%d_%d", userID, serverID, repoID)
}

// RefreshRegistry is the set of repository refreshes currently in flight.
// Membership is the lock; no data is stored against a key.
type RefreshRegistry struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewRefreshRegistry creates an empty registry.
func NewRefreshRegistry() *RefreshRegistry {
	return &RefreshRegistry{inFlight: make(map[string]struct{})}
}

// TryAcquire adds key to the in-flight set and returns true, or returns false
// if key is already present. The check and the insert are one atomic step.
func (r *RefreshRegistry) TryAcquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.inFlight[key]; held {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

// Release removes key from the in-flight set. Releasing a free key is a no-op.
func (r *RefreshRegistry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, key)
}

// IsHeld reports whether a refresh for key is in flight.
func (r *RefreshRegistry) IsHeld(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.inFlight[key]
	return held
}

// Len returns the number of refreshes in flight.
func (r *RefreshRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}
