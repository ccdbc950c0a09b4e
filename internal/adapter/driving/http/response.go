package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status            string `json:"status"`
	Time              string `json:"time"`
	RefreshesInFlight int    `json:"refreshes_in_flight"`
}

// RefreshingResponse is returned with 202 when a refresh is already running.
type RefreshingResponse struct {
	Status string `json:"status"`
}

// ServerResponse is the JSON representation of an upstream server.
type ServerResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	HasToken bool   `json:"has_token"`
	AddedAt  string `json:"added_at"`
}

// AddServerRequest is the JSON body for POST /api/v1/servers.
type AddServerRequest struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

// SetTokenRequest is the JSON body for PUT /api/v1/servers/{id}/token.
type SetTokenRequest struct {
	Token string `json:"token"`
}

// WorkflowRequest identifies a tracked workflow in request and response bodies.
type WorkflowRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// AddRepoRequest is the JSON body for POST /api/v1/users/{user}/repos.
type AddRepoRequest struct {
	ServerID  int64             `json:"server_id"`
	FullName  string            `json:"full_name"`
	Branches  []string          `json:"branches"`
	Workflows []WorkflowRequest `json:"workflows"`
}

// RepoResponse is the JSON representation of a tracked repository.
type RepoResponse struct {
	ID        int64             `json:"id"`
	ServerID  int64             `json:"server_id"`
	FullName  string            `json:"full_name"`
	Branches  []string          `json:"branches"`
	Workflows []WorkflowRequest `json:"workflows"`
	AddedAt   string            `json:"added_at"`
}

// SettingsResponse is the JSON representation of a user's settings. It is
// also the request body for PUT.
type SettingsResponse struct {
	RunRetention int `json:"run_retention"`
}

// CountsResponse is the JSON representation of roll-up counters.
type CountsResponse struct {
	Success   int `json:"success"`
	Failure   int `json:"failure"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Cancelled int `json:"cancelled"`
}

// RunResponse is the JSON representation of one run row. Only State is set
// for the no-runs placeholder.
type RunResponse struct {
	State           string  `json:"state"`
	RunID           int64   `json:"run_id,omitempty"`
	RunNumber       int     `json:"run_number,omitempty"`
	RunAttempt      int     `json:"run_attempt,omitempty"`
	Status          string  `json:"status,omitempty"`
	Conclusion      *string `json:"conclusion,omitempty"`
	Event           string  `json:"event,omitempty"`
	HeadSHA         string  `json:"head_sha,omitempty"`
	ShortSHA        string  `json:"short_sha,omitempty"`
	URL             string  `json:"url,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// WorkflowStatusResponse is the JSON representation of one workflow's runs on a branch.
type WorkflowStatusResponse struct {
	WorkflowID         string        `json:"workflow_id"`
	Name               string        `json:"name"`
	Path               string        `json:"path,omitempty"`
	State              string        `json:"state"`
	Error              string        `json:"error,omitempty"`
	HasPermissionError bool          `json:"has_permission_error"`
	Runs               []RunResponse `json:"runs"`
}

// BranchStatusResponse is the JSON representation of a branch roll-up.
type BranchStatusResponse struct {
	Name               string                   `json:"name"`
	State              string                   `json:"state"`
	HasError           bool                     `json:"has_error"`
	HasPermissionError bool                     `json:"has_permission_error"`
	Counts             CountsResponse           `json:"counts"`
	Workflows          []WorkflowStatusResponse `json:"workflows"`
}

// RepositoryStatusResponse is the JSON representation of a repository roll-up.
type RepositoryStatusResponse struct {
	RepositoryID       int64                  `json:"repository_id"`
	ServerID           int64                  `json:"server_id"`
	FullName           string                 `json:"full_name"`
	State              string                 `json:"state"`
	HasError           bool                   `json:"has_error"`
	HasPermissionError bool                   `json:"has_permission_error"`
	Refreshing         bool                   `json:"refreshing"`
	Stale              bool                   `json:"stale"`
	Counts             CountsResponse         `json:"counts"`
	Branches           []BranchStatusResponse `json:"branches"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toServerResponse(s model.Server, hasToken bool) ServerResponse {
	return ServerResponse{
		ID:       s.ID,
		Name:     s.Name,
		BaseURL:  s.BaseURL,
		HasToken: hasToken,
		AddedAt:  formatTime(s.AddedAt),
	}
}

func toRepoResponse(r model.TrackedRepository) RepoResponse {
	branches := r.Branches
	if branches == nil {
		branches = []string{}
	}
	wfs := make([]WorkflowRequest, 0, len(r.Workflows))
	for _, wf := range r.Workflows {
		wfs = append(wfs, WorkflowRequest{ID: wf.ID, Name: wf.Name, Path: wf.Path})
	}
	return RepoResponse{
		ID:        r.ID,
		ServerID:  r.ServerID,
		FullName:  r.FullName,
		Branches:  branches,
		Workflows: wfs,
		AddedAt:   formatTime(r.AddedAt),
	}
}

func toCountsResponse(c model.StatusCounts) CountsResponse {
	return CountsResponse{
		Success:   c.Success,
		Failure:   c.Failure,
		Pending:   c.Pending,
		Running:   c.Running,
		Cancelled: c.Cancelled,
	}
}

func toRunResponse(rs model.RunStatus) RunResponse {
	resp := RunResponse{State: string(rs.State)}
	if rs.IsPlaceholder() {
		return resp
	}

	run := rs.Run
	resp.RunID = run.RunID
	resp.RunNumber = run.RunNumber
	resp.RunAttempt = run.RunAttempt
	resp.Status = run.Status
	resp.Conclusion = run.Conclusion
	resp.Event = run.Event
	resp.HeadSHA = run.HeadSHA
	resp.ShortSHA = run.ShortSHA()
	resp.URL = run.URL
	resp.CreatedAt = formatTime(run.CreatedAt)
	resp.UpdatedAt = formatTime(run.UpdatedAt)
	resp.DurationSeconds = run.Duration().Seconds()
	return resp
}

func toRepositoryStatusResponse(s model.RepositoryStatus, refreshing, stale bool) RepositoryStatusResponse {
	resp := RepositoryStatusResponse{
		RepositoryID:       s.RepositoryID,
		ServerID:           s.ServerID,
		FullName:           s.FullName,
		State:              string(s.State),
		HasError:           s.HasError,
		HasPermissionError: s.HasPermissionError,
		Refreshing:         refreshing,
		Stale:              stale,
		Counts:             toCountsResponse(s.Counts),
		Branches:           make([]BranchStatusResponse, 0, len(s.Branches)),
	}

	for _, b := range s.Branches {
		br := BranchStatusResponse{
			Name:               b.Name,
			State:              string(b.State),
			HasError:           b.HasError,
			HasPermissionError: b.HasPermissionError,
			Counts:             toCountsResponse(b.Counts),
			Workflows:          make([]WorkflowStatusResponse, 0, len(b.Workflows)),
		}
		for _, wf := range b.Workflows {
			wr := WorkflowStatusResponse{
				WorkflowID:         wf.WorkflowID,
				Name:               wf.Name,
				Path:               wf.Path,
				State:              string(wf.Latest().State),
				Error:              wf.Error,
				HasPermissionError: wf.HasPermissionError,
				Runs:               make([]RunResponse, 0, len(wf.Runs)),
			}
			for _, run := range wf.Runs {
				wr.Runs = append(wr.Runs, toRunResponse(run))
			}
			br.Workflows = append(br.Workflows, wr)
		}
		resp.Branches = append(resp.Branches, br)
	}

	return resp
}
