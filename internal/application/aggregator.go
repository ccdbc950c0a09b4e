package application

import (
	"strings"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// permissionErrorMarkers are lowercase fragments of upstream error messages
// that point at token scope or repository visibility rather than a transient
// failure.
var permissionErrorMarkers = []string{
	"401",
	"403",
	"404",
	"bad credentials",
	"forbidden",
	"not found",
	"permission",
	"access",
	"resource not accessible",
}

// IsPermissionError reports whether an upstream error message describes an
// access, permission or not-found problem.
func IsPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range permissionErrorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// BuildStatus assembles the status tree of repo from whatever cache currently
// holds. Every tracked (branch, workflow) pair yields a WorkflowStatus. Only the
// newest run of each workflow feeds the branch and repository counters.
func BuildStatus(repo model.TrackedRepository, cache *RunCache) model.RepositoryStatus {
	status := model.RepositoryStatus{
		RepositoryID: repo.ID,
		ServerID:     repo.ServerID,
		FullName:     repo.FullName,
		Branches:     make([]model.BranchStatus, 0, len(repo.Branches)),
	}

	for _, branch := range repo.Branches {
		bs := buildBranchStatus(repo, branch, cache)

		status.Counts.Merge(bs.Counts)
		status.HasError = status.HasError || bs.HasError
		status.HasPermissionError = status.HasPermissionError || bs.HasPermissionError
		status.Branches = append(status.Branches, bs)
	}

	status.State = model.RollUp(status.Counts, status.HasError)
	return status
}

func buildBranchStatus(repo model.TrackedRepository, branch string, cache *RunCache) model.BranchStatus {
	bs := model.BranchStatus{
		Name:      branch,
		Workflows: make([]model.WorkflowStatus, 0, len(repo.Workflows)),
	}

	for _, wf := range repo.Workflows {
		ws := model.WorkflowStatus{
			WorkflowID: wf.ID,
			Name:       wf.DisplayName(),
			Path:       wf.Path,
		}

		entry, _ := cache.GetLatestRuns(repo.CacheKey(branch, wf.ID), 0)

		if entry.HasError() {
			ws.Error = entry.Error
			ws.HasPermissionError = IsPermissionError(entry.Error)
			bs.HasError = true
			bs.HasPermissionError = bs.HasPermissionError || ws.HasPermissionError
		}

		if len(entry.Runs) == 0 {
			ws.Runs = []model.RunStatus{model.NoRunsPlaceholder()}
		} else {
			ws.Runs = make([]model.RunStatus, 0, len(entry.Runs))
			for _, run := range entry.Runs {
				ws.Runs = append(ws.Runs, model.RunStatusOf(run))
			}
			if wf.Name == "" && entry.Runs[0].WorkflowName != "" {
				ws.Name = entry.Runs[0].WorkflowName
			}
			bs.Counts.Add(ws.Runs[0].State)
		}

		bs.Workflows = append(bs.Workflows, ws)
	}

	bs.State = model.RollUp(bs.Counts, bs.HasError)
	return bs
}
