package model

import "time"

// Server is an upstream CI API endpoint. An empty BaseURL means the public
// GitHub API; anything else is treated as a GitHub Enterprise base URL.
type Server struct {
	ID      int64
	Name    string
	BaseURL string
	AddedAt time.Time
}

// TrackedWorkflow identifies a workflow by numeric ID or file path, with an
// optional display name.
type TrackedWorkflow struct {
	ID   string
	Name string
	Path string
}

// DisplayName returns Name, falling back to the raw workflow identifier.
func (w TrackedWorkflow) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.ID
}

// TrackedRepository is a repository a user follows on a server, together
// with the branches and workflows whose runs are cached.
type TrackedRepository struct {
	ID        int64
	UserID    string
	ServerID  int64
	FullName  string
	Branches  []string
	Workflows []TrackedWorkflow
	AddedAt   time.Time
}

// CacheKey returns the cache key for one (branch, workflow) pair of the repository.
func (r TrackedRepository) CacheKey(branch, workflowID string) CacheKey {
	return CacheKey{
		ServerID:     r.ServerID,
		RepoFullName: r.FullName,
		Branch:       branch,
		WorkflowID:   workflowID,
	}
}
