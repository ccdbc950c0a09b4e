// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// triggerRequest represents a manual refresh trigger.
type triggerRequest struct {
	repo model.TrackedRepository
	done chan error
}

// PollService keeps run caches warm by refreshing every tracked repository
// on an adaptive schedule: repositories with recent run activity are polled
// often, quiet ones rarely, to spare upstream rate limit.
type PollService struct {
	statusSvc   *StatusService
	coordinator *Coordinator
	caches      *CacheRegistry
	repoStore   driven.TrackedRepoStore
	interval    time.Duration
	triggerCh   chan triggerRequest
	now         func() time.Time

	mu        sync.Mutex
	schedules map[int64]*repoSchedule
}

// NewPollService creates a new PollService. interval is the tick on which
// due repositories are looked for, not the per-repository poll interval.
func NewPollService(
	statusSvc *StatusService,
	coordinator *Coordinator,
	caches *CacheRegistry,
	repoStore driven.TrackedRepoStore,
	interval time.Duration,
) *PollService {
	return &PollService{
		statusSvc:   statusSvc,
		coordinator: coordinator,
		caches:      caches,
		repoStore:   repoStore,
		interval:    interval,
		triggerCh:   make(chan triggerRequest),
		now:         time.Now,
		schedules:   make(map[int64]*repoSchedule),
	}
}

// Start begins the polling loop. It polls every due repository immediately,
// then on each tick. It also serves manual triggers. Start blocks until the
// context is canceled.
func (s *PollService) Start(ctx context.Context) {
	if err := s.pollDue(ctx); err != nil {
		slog.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			if err := s.pollDue(ctx); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		case req := <-s.triggerCh:
			req.done <- s.pollRepo(ctx, req.repo, true)
		}
	}
}

// Trigger requests a full refresh of repo outside the schedule. It blocks
// until the refresh completes or the context is canceled.
func (s *PollService) Trigger(ctx context.Context, repo model.TrackedRepository) error {
	done := make(chan error, 1)
	req := triggerRequest{repo: repo, done: done}

	select {
	case s.triggerCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule returns the adaptive schedule of a repository, if it has been polled.
func (s *PollService) Schedule(repoID int64) (ScheduleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[repoID]
	if !ok {
		return ScheduleInfo{}, false
	}
	return sched.info(), true
}

// pollDue refreshes every tracked repository whose schedule has come due.
func (s *PollService) pollDue(ctx context.Context) error {
	start := s.now()

	repos, err := s.repoStore.ListAll(ctx)
	if err != nil {
		return err
	}

	var polled, skippedBusy, skippedNotDue, pollErrors int
	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !s.isDue(repo.ID) {
			skippedNotDue++
			continue
		}
		if s.coordinator.IsRefreshing(repo.UserID, repo) {
			skippedBusy++
			continue
		}

		if err := s.pollRepo(ctx, repo, false); err != nil {
			slog.Error("repo poll failed", "user", repo.UserID, "repo", repo.FullName, "error", err)
			pollErrors++
			continue
		}
		polled++
	}

	slog.Info("poll cycle complete",
		"repos", len(repos),
		"polled", polled,
		"skipped_busy", skippedBusy,
		"skipped_not_due", skippedNotDue,
		"errors", pollErrors,
		"duration", s.now().Sub(start).Round(time.Millisecond),
	)

	return nil
}

// pollRepo refreshes one repository and reschedules it from its newest run activity.
func (s *PollService) pollRepo(ctx context.Context, repo model.TrackedRepository, forceFull bool) error {
	result, err := s.statusSvc.RefreshRepo(ctx, repo, forceFull)
	if err != nil {
		return err
	}
	if result.InProgress {
		slog.Debug("repo poll skipped, refresh in progress", "user", repo.UserID, "repo", repo.FullName)
		return nil
	}

	lastActivity := s.caches.ForUser(repo.UserID, 0).NewestActivity(repo.ServerID, repo.FullName)
	sched := scheduleAfterPoll(s.now(), lastActivity)

	s.mu.Lock()
	s.schedules[repo.ID] = sched
	s.mu.Unlock()

	slog.Debug("repo polled",
		"user", repo.UserID,
		"repo", repo.FullName,
		"state", string(result.Status.State),
		"tier", sched.tier.String(),
		"next_poll_at", sched.nextPollAt,
	)
	return nil
}

func (s *PollService) isDue(repoID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[repoID]
	return !ok || sched.due(s.now())
}
