package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// Coordinator defaults.
const (
	DefaultIncrementalFetchCount = 10
	DefaultFetchConcurrency      = 4
	DefaultStaleAfter            = 5 * time.Minute
	DefaultRefreshTimeout        = 2 * time.Minute
)

// RefreshRequest describes one repository refresh. Token authenticates
// against Server; Retention is the user's run retention preference.
type RefreshRequest struct {
	UserID    string
	Repo      model.TrackedRepository
	Server    model.Server
	Token     string
	Retention int
	ForceFull bool
}

// RefreshResult is either a completed refresh carrying the new status, or
// InProgress when another refresh of the same repository holds the lock.
type RefreshResult struct {
	InProgress bool
	Status     *model.RepositoryStatus
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithIncrementalFetchCount sets how many runs a warm-cache refresh requests
// per tuple. Non-positive values are ignored.
func WithIncrementalFetchCount(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.incrementalCount = n
		}
	}
}

// WithFetchConcurrency bounds the number of concurrent upstream fetches per
// refresh. Non-positive values are ignored.
func WithFetchConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithStaleAfter sets the age after which a cached tuple needs a refresh.
func WithStaleAfter(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithRefreshTimeout bounds how long one refresh may spend fetching.
// Non-positive values are ignored.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger used for per-tuple failures and refresh summaries.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// Coordinator refreshes the run cache from upstream, allowing at most one
// refresh per (user, server, repository) at a time.
type Coordinator struct {
	caches           *CacheRegistry
	locks            *RefreshRegistry
	fetcher          driven.RunFetcher
	incrementalCount int
	concurrency      int
	staleAfter       time.Duration
	refreshTimeout   time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

// NewCoordinator creates a Coordinator over the given registries and fetcher.
func NewCoordinator(caches *CacheRegistry, locks *RefreshRegistry, fetcher driven.RunFetcher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		caches:           caches,
		locks:            locks,
		fetcher:          fetcher,
		incrementalCount: DefaultIncrementalFetchCount,
		concurrency:      DefaultFetchConcurrency,
		staleAfter:       DefaultStaleAfter,
		refreshTimeout:   DefaultRefreshTimeout,
		logger:           slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh fetches every tracked (branch, workflow) pair of req.Repo and
// merges the results into the user's cache, then returns the aggregated
// status. If a refresh of the same repository is already running it returns
// immediately with InProgress set and leaves the cache untouched.
//
// Upstream failures never surface as an error: each failing tuple is
// recorded on its cache entry and its siblings are still fetched. The cache
// is shared by every caller, so canceling ctx does not stop a refresh; only
// the coordinator's own timeout does.
func (c *Coordinator) Refresh(ctx context.Context, req RefreshRequest) RefreshResult {
	key := RefreshKey(req.UserID, req.Repo.ServerID, req.Repo.ID)
	if !c.locks.TryAcquire(key) {
		refreshTotal.WithLabelValues(outcomeInProgress).Inc()
		c.logger.Debug("refresh already in progress", "key", key, "repo", req.Repo.FullName)
		return RefreshResult{InProgress: true}
	}
	defer c.locks.Release(key)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	start := c.now()
	cache := c.caches.ForUser(req.UserID, req.Retention)
	fetchCount := c.fetchCount(cache, req.ForceFull)

	var failed int
	results := make(chan bool, len(req.Repo.Branches)*len(req.Repo.Workflows))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, branch := range req.Repo.Branches {
		for _, wf := range req.Repo.Workflows {
			g.Go(func() error {
				results <- c.refreshTuple(ctx, cache, req, branch, wf.ID, fetchCount)
				return nil
			})
		}
	}
	_ = g.Wait() // Tuple goroutines never return an error.
	close(results)

	for ok := range results {
		if !ok {
			failed++
		}
	}

	status := BuildStatus(req.Repo, cache)

	refreshTotal.WithLabelValues(outcomeCompleted).Inc()
	refreshDuration.Observe(c.now().Sub(start).Seconds())
	c.logger.Info("repo refreshed",
		"user", req.UserID,
		"repo", req.Repo.FullName,
		"server", req.Repo.ServerID,
		"fetch_count", fetchCount,
		"force_full", req.ForceFull,
		"tuples", len(req.Repo.Branches)*len(req.Repo.Workflows),
		"failed", failed,
		"state", string(status.State),
		"duration", c.now().Sub(start).Round(time.Millisecond),
	)

	return RefreshResult{Status: &status}
}

// IsRefreshing reports whether a refresh of the repository is in flight.
func (c *Coordinator) IsRefreshing(userID string, repo model.TrackedRepository) bool {
	return c.locks.IsHeld(RefreshKey(userID, repo.ServerID, repo.ID))
}

// NeedsRefresh reports whether any tracked tuple of repo lacks a successful
// cache entry or was last written longer ago than the staleness window.
func (c *Coordinator) NeedsRefresh(userID string, repo model.TrackedRepository) bool {
	cache := c.caches.ForUser(userID, 0)
	for _, branch := range repo.Branches {
		for _, wf := range repo.Workflows {
			key := repo.CacheKey(branch, wf.ID)
			if !cache.HasEntry(key, true) {
				return true
			}
			entry, _ := cache.GetLatestRuns(key, 1)
			if c.now().Sub(entry.UpdatedAt) > c.staleAfter {
				return true
			}
		}
	}
	return false
}

// fetchCount picks how many runs to request per tuple: the full retention
// window for a forced refresh or a cold cache, the incremental count otherwise.
func (c *Coordinator) fetchCount(cache *RunCache, forceFull bool) int {
	if forceFull || cache.Len() == 0 {
		return cache.MaxRuns()
	}
	return c.incrementalCount
}

// refreshTuple fetches one (branch, workflow) pair and records the outcome in
// cache. It returns false if the fetch failed. A panicking fetcher is treated
// as a failed fetch.
func (c *Coordinator) refreshTuple(ctx context.Context, cache *RunCache, req RefreshRequest, branch, workflowID string, fetchCount int) (ok bool) {
	key := req.Repo.CacheKey(branch, workflowID)

	defer func() {
		if v := recover(); v != nil {
			c.recordFailure(cache, key, req.UserID, fmt.Errorf("fetch panicked: %v", v))
			ok = false
		}
	}()

	runs, err := c.fetcher.FetchRuns(ctx, req.Server, req.Token, req.Repo.FullName, branch, workflowID, fetchCount)
	if err != nil {
		c.recordFailure(cache, key, req.UserID, err)
		return false
	}

	fetchedRunsTotal.Add(float64(len(runs)))
	cache.UpdateRuns(key, runs)
	return true
}

func (c *Coordinator) recordFailure(cache *RunCache, key model.CacheKey, userID string, err error) {
	kind := fetchErrorOther
	if IsPermissionError(err.Error()) {
		kind = fetchErrorPermission
	}
	fetchErrorsTotal.WithLabelValues(kind).Inc()

	c.logger.Error("fetch runs failed",
		"user", userID,
		"repo", key.RepoFullName,
		"branch", key.Branch,
		"workflow", key.WorkflowID,
		"error", err,
	)
	cache.UpdateError(key, err.Error())
}
