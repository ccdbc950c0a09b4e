// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// RunFetcher defines the driven port for reading workflow runs from an
// upstream CI API.
type RunFetcher interface {
	// FetchRuns returns up to maxResults runs of workflowID on branch, newest
	// first. It returns an empty slice, not an error, when the workflow has no
	// runs. Network failures and non-2xx responses are returned as errors.
	FetchRuns(ctx context.Context, server model.Server, token, repoFullName, branch, workflowID string, maxResults int) ([]model.RunRecord, error)
}
