package application

import (
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// CacheRegistry hands out one RunCache per user. Caches are created lazily on
// first access and live for the lifetime of the registry.
type CacheRegistry struct {
	mu             sync.Mutex
	caches         map[string]*RunCache
	defaultMaxRuns int
	now            func() time.Time
}

// NewCacheRegistry creates a registry whose new caches retain defaultMaxRuns
// runs per workflow. A non-positive value falls back to model.DefaultRunRetention.
func NewCacheRegistry(defaultMaxRuns int) *CacheRegistry {
	if defaultMaxRuns <= 0 {
		defaultMaxRuns = model.DefaultRunRetention
	}
	return &CacheRegistry{
		caches:         make(map[string]*RunCache),
		defaultMaxRuns: defaultMaxRuns,
		now:            time.Now,
	}
}

// ForUser returns the cache for userID, creating it on first use. When
// maxRuns is positive and differs from the cache's current bound, the bound
// is updated; it takes effect on the next write.
func (r *CacheRegistry) ForUser(userID string, maxRuns int) *RunCache {
	r.mu.Lock()
	c, ok := r.caches[userID]
	if !ok {
		c = newRunCache(r.defaultMaxRuns, r.now)
		r.caches[userID] = c
	}
	r.mu.Unlock()

	if maxRuns > 0 {
		c.SetMaxRuns(maxRuns)
	}
	return c
}

// RunCache is one user's in-memory store of workflow runs, keyed by
// (server, repository, branch, workflow). It is safe for concurrent use.
type RunCache struct {
	mu      sync.RWMutex
	entries map[int64]map[string]map[string]map[string]*model.CacheEntry
	maxRuns int
	now     func() time.Time
}

func newRunCache(maxRuns int, now func() time.Time) *RunCache {
	return &RunCache{
		entries: make(map[int64]map[string]map[string]map[string]*model.CacheEntry),
		maxRuns: maxRuns,
		now:     now,
	}
}

// MaxRuns returns the current per-workflow retention bound.
func (c *RunCache) MaxRuns() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxRuns
}

// SetMaxRuns changes the retention bound. Non-positive values are ignored.
// Existing entries are not shrunk until their next write.
func (c *RunCache) SetMaxRuns(maxRuns int) {
	if maxRuns <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxRuns = maxRuns
}

// HasEntry reports whether an entry exists for key. With noError set, an
// entry whose last fetch failed does not count.
func (c *RunCache) HasEntry(key model.CacheKey, noError bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.lookup(key)
	if e == nil {
		return false
	}
	return !noError || e.Error == ""
}

// UpdateError records a failed fetch for key, creating the entry if needed.
// Previously cached runs are kept so stale data can still be served.
func (c *RunCache) UpdateError(key model.CacheKey, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookupOrCreate(key)
	e.Error = errMsg
	e.UpdatedAt = c.now()
}

// UpdateRuns upserts runs into the entry for key by run number: a run with a
// known number replaces the stored one, anything else is added. The result is
// sorted by run number descending and truncated to the retention bound, so the
// highest run numbers survive. Any previous error is cleared.
func (c *RunCache) UpdateRuns(key model.CacheKey, runs []model.RunRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookupOrCreate(key)
	e.Runs = mergeRuns(e.Runs, runs, c.maxRuns)
	e.Error = ""
	e.UpdatedAt = c.now()
}

// GetLatestRuns returns a copy of the entry for key with at most limit runs,
// newest first. A non-positive limit returns every cached run. The boolean is
// false when nothing is cached for key.
func (c *RunCache) GetLatestRuns(key model.CacheKey, limit int) (model.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.lookup(key)
	if e == nil {
		return model.CacheEntry{}, false
	}

	runs := e.Runs
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	out := model.CacheEntry{
		UpdatedAt: e.UpdatedAt,
		Error:     e.Error,
	}
	if len(runs) > 0 {
		out.Runs = make([]model.RunRecord, len(runs))
		copy(out.Runs, runs)
	}
	return out, true
}

// Entry returns a copy of the whole entry for key.
func (c *RunCache) Entry(key model.CacheKey) (model.CacheEntry, bool) {
	return c.GetLatestRuns(key, 0)
}

// GetLatestRun returns the newest cached run for key.
func (c *RunCache) GetLatestRun(key model.CacheKey) (model.RunRecord, bool) {
	e, ok := c.GetLatestRuns(key, 1)
	if !ok || len(e.Runs) == 0 {
		return model.RunRecord{}, false
	}
	return e.Runs[0], true
}

// Len returns the number of cached tuples.
func (c *RunCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, repos := range c.entries {
		for _, branches := range repos {
			for _, workflows := range branches {
				n += len(workflows)
			}
		}
	}
	return n
}

// NewestActivity returns the latest UpdatedAt of any cached run of the
// repository, or the zero time when none is cached.
func (c *RunCache) NewestActivity(serverID int64, repoFullName string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var newest time.Time
	for _, workflows := range c.entries[serverID][repoFullName] {
		for _, e := range workflows {
			for _, run := range e.Runs {
				if run.UpdatedAt.After(newest) {
					newest = run.UpdatedAt
				}
			}
		}
	}
	return newest
}

// Clear drops every entry in the cache.
func (c *RunCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]map[string]map[string]map[string]*model.CacheEntry)
}

// lookup must be called with c.mu held.
func (c *RunCache) lookup(key model.CacheKey) *model.CacheEntry {
	return c.entries[key.ServerID][key.RepoFullName][key.Branch][key.WorkflowID]
}

// lookupOrCreate must be called with c.mu held for writing.
func (c *RunCache) lookupOrCreate(key model.CacheKey) *model.CacheEntry {
	repos, ok := c.entries[key.ServerID]
	if !ok {
		repos = make(map[string]map[string]map[string]*model.CacheEntry)
		c.entries[key.ServerID] = repos
	}
	branches, ok := repos[key.RepoFullName]
	if !ok {
		branches = make(map[string]map[string]*model.CacheEntry)
		repos[key.RepoFullName] = branches
	}
	workflows, ok := branches[key.Branch]
	if !ok {
		workflows = make(map[string]*model.CacheEntry)
		branches[key.Branch] = workflows
	}
	e, ok := workflows[key.WorkflowID]
	if !ok {
		e = &model.CacheEntry{}
		workflows[key.WorkflowID] = e
	}
	return e
}

// mergeRuns upserts incoming into stored keyed by run number, then sorts by
// run number descending and keeps at most maxRuns. When incoming repeats a run
// number, the last occurrence wins.
func mergeRuns(stored, incoming []model.RunRecord, maxRuns int) []model.RunRecord {
	byNumber := make(map[int]int, len(stored)+len(incoming))
	merged := make([]model.RunRecord, 0, len(stored)+len(incoming))

	for _, run := range stored {
		if i, ok := byNumber[run.RunNumber]; ok {
			merged[i] = run
			continue
		}
		byNumber[run.RunNumber] = len(merged)
		merged = append(merged, run)
	}
	for _, run := range incoming {
		if i, ok := byNumber[run.RunNumber]; ok {
			merged[i] = run
			continue
		}
		byNumber[run.RunNumber] = len(merged)
		merged = append(merged, run)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].RunNumber > merged[j].RunNumber
	})

	if maxRuns > 0 && len(merged) > maxRuns {
		merged = merged[:maxRuns]
	}
	return merged
}
