// Package httphandler is the JSON REST driving adapter.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/runpanel/internal/application"
	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// triggerTimeout bounds the background refresh started when a repository is added.
const triggerTimeout = 2 * time.Minute

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	statusSvc     *application.StatusService
	pollSvc       *application.PollService
	locks         *application.RefreshRegistry
	repoStore     driven.TrackedRepoStore
	serverStore   driven.ServerStore
	credStore     driven.CredentialStore
	settingsStore driven.UserSettingsStore
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. pollSvc and
// locks may be nil; newly added repositories are then refreshed on first
// request instead of in the background.
func NewHandler(
	statusSvc *application.StatusService,
	pollSvc *application.PollService,
	locks *application.RefreshRegistry,
	repoStore driven.TrackedRepoStore,
	serverStore driven.ServerStore,
	credStore driven.CredentialStore,
	settingsStore driven.UserSettingsStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		statusSvc:     statusSvc,
		pollSvc:       pollSvc,
		locks:         locks,
		repoStore:     repoStore,
		serverStore:   serverStore,
		credStore:     credStore,
		settingsStore: settingsStore,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/servers", h.ListServers)
	mux.HandleFunc("POST /api/v1/servers", h.AddServer)
	mux.HandleFunc("PUT /api/v1/servers/{id}/token", h.SetServerToken)

	mux.HandleFunc("GET /api/v1/users/{user}/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/users/{user}/repos", h.AddRepo)
	mux.HandleFunc("DELETE /api/v1/users/{user}/repos/{id}", h.RemoveRepo)
	mux.HandleFunc("GET /api/v1/users/{user}/repos/{id}/status", h.GetStatus)
	mux.HandleFunc("POST /api/v1/users/{user}/repos/{id}/refresh", h.Refresh)

	mux.HandleFunc("GET /api/v1/users/{user}/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/v1/users/{user}/settings", h.SetSettings)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if h.locks != nil {
		resp.RefreshesInFlight = h.locks.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStatus returns the status tree of a tracked repository from the run
// cache as it is right now. It never contacts upstream; stale tells the
// client a refresh is worth requesting.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	repoID, ok := parseID(w, r)
	if !ok {
		return
	}

	status, err := h.statusSvc.Snapshot(r.Context(), userID, repoID)
	if err != nil {
		h.writeStoreError(w, "failed to build status", userID, repoID, err)
		return
	}

	refreshing, err := h.statusSvc.IsRefreshing(r.Context(), userID, repoID)
	if err != nil {
		h.writeStoreError(w, "failed to check refresh state", userID, repoID, err)
		return
	}

	stale, err := h.statusSvc.NeedsRefresh(r.Context(), userID, repoID)
	if err != nil {
		h.writeStoreError(w, "failed to check staleness", userID, repoID, err)
		return
	}

	writeJSON(w, http.StatusOK, toRepositoryStatusResponse(status, refreshing, stale))
}

// Refresh refreshes a tracked repository and returns its new status. With
// ?full=true the whole retention window is re-fetched. If a refresh of the
// same repository is already running it answers 202 without waiting.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	repoID, ok := parseID(w, r)
	if !ok {
		return
	}

	forceFull := false
	if v := r.URL.Query().Get("full"); v != "" {
		var err error
		forceFull, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid full parameter: expected a boolean")
			return
		}
	}

	result, err := h.statusSvc.Refresh(r.Context(), userID, repoID, forceFull)
	if err != nil {
		h.writeStoreError(w, "failed to refresh repository", userID, repoID, err)
		return
	}

	if result.InProgress {
		writeJSON(w, http.StatusAccepted, RefreshingResponse{Status: "refreshing"})
		return
	}

	// Tuples that failed during this refresh leave the repository stale.
	stale, err := h.statusSvc.NeedsRefresh(r.Context(), userID, repoID)
	if err != nil {
		h.writeStoreError(w, "failed to check staleness", userID, repoID, err)
		return
	}

	writeJSON(w, http.StatusOK, toRepositoryStatusResponse(*result.Status, false, stale))
}

// ListRepos returns the repositories tracked by a user.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	repos, err := h.repoStore.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list repos", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddRepo starts tracking a repository for a user and triggers an async refresh.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidRepoName(req.FullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}
	if msg := validateTracked(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	repo := model.TrackedRepository{
		UserID:   userID,
		ServerID: req.ServerID,
		FullName: req.FullName,
		Branches: req.Branches,
		AddedAt:  time.Now().UTC(),
	}
	for _, wf := range req.Workflows {
		repo.Workflows = append(repo.Workflows, model.TrackedWorkflow{
			ID:   strings.TrimSpace(wf.ID),
			Name: wf.Name,
			Path: wf.Path,
		})
	}

	added, err := h.repoStore.Add(r.Context(), repo)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrRepoAlreadyExists):
			writeError(w, http.StatusConflict, "repository already exists")
		case errors.Is(err, driven.ErrServerNotFound):
			writeError(w, http.StatusBadRequest, "unknown server")
		default:
			h.logger.Error("failed to add repo", "user", userID, "repo", req.FullName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	// Fire-and-forget async refresh with background context since the HTTP
	// request context will be cancelled after the response is sent.
	if h.pollSvc != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
			defer cancel()
			if err := h.pollSvc.Trigger(ctx, added); err != nil {
				h.logger.Error("async repo refresh failed", "user", userID, "repo", added.FullName, "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(added))
}

// RemoveRepo stops tracking a repository.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	repoID, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.repoStore.Remove(r.Context(), userID, repoID); err != nil {
		h.writeStoreError(w, "failed to remove repo", userID, repoID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListServers returns all configured upstream servers.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.serverStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list servers", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ServerResponse, 0, len(servers))
	for _, s := range servers {
		token, err := h.credStore.Get(r.Context(), model.ServerTokenService(s.ID))
		if err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			h.logger.Error("failed to read server token", "server", s.ID, "error", err)
		}
		resp = append(resp, toServerResponse(s, token != ""))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddServer configures a new upstream server and, optionally, its API token.
func (h *Handler) AddServer(w http.ResponseWriter, r *http.Request) {
	var req AddServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.BaseURL != "" && !isValidBaseURL(req.BaseURL) {
		writeError(w, http.StatusBadRequest, "invalid base_url: expected an absolute http(s) URL")
		return
	}

	server, err := h.serverStore.Add(r.Context(), model.Server{Name: req.Name, BaseURL: req.BaseURL})
	if err != nil {
		if errors.Is(err, driven.ErrServerAlreadyExists) {
			writeError(w, http.StatusConflict, "server already exists")
			return
		}
		h.logger.Error("failed to add server", "base_url", req.BaseURL, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hasToken := false
	if req.Token != "" {
		if err := h.credStore.Set(r.Context(), model.ServerTokenService(server.ID), req.Token); err != nil {
			h.writeCredentialError(w, server.ID, err)
			return
		}
		hasToken = true
	}

	writeJSON(w, http.StatusCreated, toServerResponse(server, hasToken))
}

// SetServerToken stores or clears the API token of a server. An empty token
// deletes the stored one.
func (h *Handler) SetServerToken(w http.ResponseWriter, r *http.Request) {
	serverID, ok := parseID(w, r)
	if !ok {
		return
	}

	var req SetTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.serverStore.Get(r.Context(), serverID); err != nil {
		if errors.Is(err, driven.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		h.logger.Error("failed to get server", "server", serverID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	service := model.ServerTokenService(serverID)
	var err error
	if req.Token == "" {
		err = h.credStore.Delete(r.Context(), service)
	} else {
		err = h.credStore.Set(r.Context(), service, req.Token)
	}
	if err != nil {
		h.writeCredentialError(w, serverID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSettings returns a user's settings, with defaults applied.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	settings, err := h.settingsStore.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get settings", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{RunRetention: settings.RunRetention})
}

// SetSettings replaces a user's settings. A new run retention applies to the
// user's cache on the next refresh.
func (h *Handler) SetSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	var req SettingsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RunRetention < model.MinRunRetention || req.RunRetention > model.MaxRunRetention {
		writeError(w, http.StatusBadRequest,
			"run_retention must be between "+strconv.Itoa(model.MinRunRetention)+" and "+strconv.Itoa(model.MaxRunRetention))
		return
	}

	settings := model.UserSettings{UserID: userID, RunRetention: req.RunRetention}
	if err := h.settingsStore.Set(r.Context(), settings); err != nil {
		h.logger.Error("failed to set settings", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// writeStoreError maps a store or service error for a repository to a response.
func (h *Handler) writeStoreError(w http.ResponseWriter, msg, userID string, repoID int64, err error) {
	switch {
	case errors.Is(err, driven.ErrRepoNotFound):
		writeError(w, http.StatusNotFound, "repository not found")
	case errors.Is(err, driven.ErrServerNotFound):
		writeError(w, http.StatusNotFound, "server not found")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, "credential storage not configured")
	default:
		h.logger.Error(msg, "user", userID, "repo_id", repoID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeCredentialError(w http.ResponseWriter, serverID int64, err error) {
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		writeError(w, http.StatusServiceUnavailable, "credential storage not configured")
		return
	}
	h.logger.Error("failed to store server token", "server", serverID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// parseID reads the {id} path value. It writes a 400 and returns false when
// the value is not a positive integer.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// validateTracked returns a message describing what is wrong with the
// branches and workflows of req, or "" when they are usable.
func validateTracked(req AddRepoRequest) string {
	if req.ServerID <= 0 {
		return "server_id is required"
	}
	if len(req.Branches) == 0 {
		return "at least one branch is required"
	}
	for _, b := range req.Branches {
		if strings.TrimSpace(b) == "" {
			return "branch names must not be empty"
		}
	}
	if len(req.Workflows) == 0 {
		return "at least one workflow is required"
	}
	for _, wf := range req.Workflows {
		if strings.TrimSpace(wf.ID) == "" {
			return "workflow id must not be empty"
		}
	}
	return ""
}

// isValidBaseURL reports whether s is an absolute http or https URL.
func isValidBaseURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
