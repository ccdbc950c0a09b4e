package model

import "time"

// RunRecord is one CI run of one workflow on one branch, as returned by the
// upstream Actions API.
type RunRecord struct {
	WorkflowName string
	RunID        int64
	RunNumber    int // Monotonic per workflow; ordering and dedup key within a cache entry.
	Event        string
	HeadSHA      string
	Status       string
	Conclusion   *string // nil until the run completes.
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    time.Time
	RunAttempt   int
	URL          string
	WorkflowID   string
	WorkflowPath string
}

// State returns the normalized state of the run.
func (r RunRecord) State() NormalizedState {
	return Normalize(r.Status, r.Conclusion)
}

// ShortSHA returns the first seven characters of the head commit.
func (r RunRecord) ShortSHA() string {
	if len(r.HeadSHA) >= 7 {
		return r.HeadSHA[:7]
	}
	return r.HeadSHA
}

// Duration is the wall time between the run starting and its last update.
// Zero when either timestamp is missing.
func (r RunRecord) Duration() time.Duration {
	if r.UpdatedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.UpdatedAt.Sub(r.StartedAt)
}
