package model

import "time"

// CacheKey identifies one cached tuple: a workflow on a branch of a
// repository hosted by a server.
type CacheKey struct {
	ServerID     int64
	RepoFullName string
	Branch       string
	WorkflowID   string
}

// CacheEntry holds the cached runs for exactly one CacheKey. Runs are sorted
// by RunNumber descending with no duplicate run numbers. Error is non-empty
// when the most recent fetch for the tuple failed.
type CacheEntry struct {
	Runs      []RunRecord
	UpdatedAt time.Time
	Error     string
}

// HasError reports whether the last fetch for this entry failed.
func (e CacheEntry) HasError() bool {
	return e.Error != ""
}
