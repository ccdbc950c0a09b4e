package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// StatusService resolves a user's tracked repository and everything needed
// to refresh it, then delegates to the Coordinator or reads the current
// cache. Store failures are the only errors it returns; upstream fetch
// failures are folded into the returned status.
type StatusService struct {
	coordinator   *Coordinator
	caches        *CacheRegistry
	repoStore     driven.TrackedRepoStore
	serverStore   driven.ServerStore
	credStore     driven.CredentialStore
	settingsStore driven.UserSettingsStore
}

// NewStatusService creates a StatusService with all required dependencies.
func NewStatusService(
	coordinator *Coordinator,
	caches *CacheRegistry,
	repoStore driven.TrackedRepoStore,
	serverStore driven.ServerStore,
	credStore driven.CredentialStore,
	settingsStore driven.UserSettingsStore,
) *StatusService {
	return &StatusService{
		coordinator:   coordinator,
		caches:        caches,
		repoStore:     repoStore,
		serverStore:   serverStore,
		credStore:     credStore,
		settingsStore: settingsStore,
	}
}

// Refresh refreshes one tracked repository of userID. The result has
// InProgress set when another refresh of the same repository is running.
func (s *StatusService) Refresh(ctx context.Context, userID string, repoID int64, forceFull bool) (RefreshResult, error) {
	repo, err := s.repoStore.Get(ctx, userID, repoID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("load repository %d: %w", repoID, err)
	}
	return s.RefreshRepo(ctx, repo, forceFull)
}

// RefreshRepo refreshes an already loaded tracked repository.
func (s *StatusService) RefreshRepo(ctx context.Context, repo model.TrackedRepository, forceFull bool) (RefreshResult, error) {
	req, err := s.buildRequest(ctx, repo, forceFull)
	if err != nil {
		return RefreshResult{}, err
	}
	return s.coordinator.Refresh(ctx, req), nil
}

// Snapshot returns the status of a tracked repository from whatever is
// cached right now, without contacting upstream. It is the best-available
// view for callers that find a refresh already in flight.
func (s *StatusService) Snapshot(ctx context.Context, userID string, repoID int64) (model.RepositoryStatus, error) {
	repo, err := s.repoStore.Get(ctx, userID, repoID)
	if err != nil {
		return model.RepositoryStatus{}, fmt.Errorf("load repository %d: %w", repoID, err)
	}

	settings, err := s.settingsStore.Get(ctx, userID)
	if err != nil {
		return model.RepositoryStatus{}, fmt.Errorf("load settings for %s: %w", userID, err)
	}

	return BuildStatus(repo, s.caches.ForUser(userID, settings.RunRetention)), nil
}

// IsRefreshing reports whether a refresh of the repository is in flight.
func (s *StatusService) IsRefreshing(ctx context.Context, userID string, repoID int64) (bool, error) {
	repo, err := s.repoStore.Get(ctx, userID, repoID)
	if err != nil {
		return false, fmt.Errorf("load repository %d: %w", repoID, err)
	}
	return s.coordinator.IsRefreshing(userID, repo), nil
}

// NeedsRefresh reports whether any tracked tuple of the repository has no
// successful cache entry or is older than the coordinator's staleness window.
func (s *StatusService) NeedsRefresh(ctx context.Context, userID string, repoID int64) (bool, error) {
	repo, err := s.repoStore.Get(ctx, userID, repoID)
	if err != nil {
		return false, fmt.Errorf("load repository %d: %w", repoID, err)
	}
	return s.coordinator.NeedsRefresh(userID, repo), nil
}

func (s *StatusService) buildRequest(ctx context.Context, repo model.TrackedRepository, forceFull bool) (RefreshRequest, error) {
	server, err := s.serverStore.Get(ctx, repo.ServerID)
	if err != nil {
		return RefreshRequest{}, fmt.Errorf("load server %d: %w", repo.ServerID, err)
	}

	// Without a secret key no token can be stored; public repositories are
	// still readable anonymously.
	token, err := s.credStore.Get(ctx, model.ServerTokenService(repo.ServerID))
	if err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return RefreshRequest{}, fmt.Errorf("load token for server %d: %w", repo.ServerID, err)
	}

	settings, err := s.settingsStore.Get(ctx, repo.UserID)
	if err != nil {
		return RefreshRequest{}, fmt.Errorf("load settings for %s: %w", repo.UserID, err)
	}

	return RefreshRequest{
		UserID:    repo.UserID,
		Repo:      repo,
		Server:    server,
		Token:     token,
		Retention: settings.RunRetention,
		ForceFull: forceFull,
	}, nil
}
