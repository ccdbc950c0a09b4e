package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		conclusion *string
		want       NormalizedState
	}{
		{"no_runs marker", "no_runs", nil, StateNoRuns},
		{"no_runs marker ignores conclusion", "no_runs", strPtr("success"), StateNoRuns},
		{"completed success", "completed", strPtr("success"), StateSuccess},
		{"completed failure", "completed", strPtr("failure"), StateFailure},
		{"timed out is failure", "completed", strPtr("timed_out"), StateFailure},
		{"cancelled", "completed", strPtr("cancelled"), StateCancelled},
		{"skipped is cancelled", "completed", strPtr("skipped"), StateCancelled},
		{"queued without conclusion", "queued", nil, StateRunning},
		{"in progress without conclusion", "in_progress", nil, StateRunning},
		{"running", "running", nil, StateRunning},
		{"error status", "error", nil, StateError},
		{"pending", "pending", nil, StatePending},
		{"action required conclusion", "completed", strPtr("action_required"), StatePending},
		{"neutral is unknown", "completed", strPtr("neutral"), StateUnknown},
		{"completed without conclusion", "completed", nil, StateUnknown},
		{"empty conclusion overrides status", "in_progress", strPtr(""), StateUnknown},
		{"empty inputs", "", nil, StateUnknown},
		{"garbage", "\x00weird", strPtr("???"), StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.status, tt.conclusion))
		})
	}
}

func TestNormalize_AlwaysReturnsDefinedState(t *testing.T) {
	valid := map[NormalizedState]bool{
		StateSuccess: true, StateFailure: true, StatePending: true, StateRunning: true,
		StateCancelled: true, StateError: true, StateUnknown: true, StateNoRuns: true,
	}
	inputs := []string{"", "success", "failure", "queued", "no_runs", "SUCCESS", "waiting", "requested", "stale"}

	for _, status := range inputs {
		assert.True(t, valid[Normalize(status, nil)], "status %q", status)
		for _, conclusion := range inputs {
			c := conclusion
			got := Normalize(status, &c)
			assert.True(t, valid[got], "status %q conclusion %q gave %q", status, conclusion, got)
		}
	}
}

func TestRollUp(t *testing.T) {
	tests := []struct {
		name     string
		counts   StatusCounts
		hasError bool
		want     NormalizedState
	}{
		{"error wins over everything", StatusCounts{Failure: 1, Running: 2, Success: 3}, true, StateError},
		{"failure beats running", StatusCounts{Failure: 1, Running: 1}, false, StateFailure},
		{"running beats success", StatusCounts{Running: 1, Success: 2}, false, StateRunning},
		{"pending beats running", StatusCounts{Pending: 1, Running: 1}, false, StatePending},
		{"success only", StatusCounts{Success: 4}, false, StateSuccess},
		{"cancelled only is unknown", StatusCounts{Cancelled: 2}, false, StateUnknown},
		{"nothing is unknown", StatusCounts{}, false, StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RollUp(tt.counts, tt.hasError))
		})
	}
}

func TestStatusCounts_AddIgnoresUncountedStates(t *testing.T) {
	var c StatusCounts
	c.Add(StateError)
	c.Add(StateUnknown)
	c.Add(StateNoRuns)
	assert.Equal(t, StatusCounts{}, c)

	c.Add(StateCancelled)
	c.Add(StateSuccess)
	assert.Equal(t, StatusCounts{Success: 1, Cancelled: 1}, c)
}

func TestRunStatus_Variants(t *testing.T) {
	placeholder := NoRunsPlaceholder()
	assert.True(t, placeholder.IsPlaceholder())
	assert.Equal(t, StateNoRuns, placeholder.State)

	real := RunStatusOf(RunRecord{RunNumber: 7, Status: "completed", Conclusion: strPtr("success")})
	assert.False(t, real.IsPlaceholder())
	assert.Equal(t, StateSuccess, real.State)
	assert.Equal(t, 7, real.Run.RunNumber)
}
