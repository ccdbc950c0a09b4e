package model

// NormalizedState is the canonical run state vocabulary that every roll-up
// and presentation decision is built on.
type NormalizedState string

const (
	StateSuccess   NormalizedState = "success"
	StateFailure   NormalizedState = "failure"
	StatePending   NormalizedState = "pending"
	StateRunning   NormalizedState = "running"
	StateCancelled NormalizedState = "cancelled"
	StateError     NormalizedState = "error"
	StateUnknown   NormalizedState = "unknown"
	StateNoRuns    NormalizedState = "no_runs"
)

// Normalize maps a raw (status, conclusion) pair to a NormalizedState.
// The conclusion takes precedence over the status once it is set. Every
// input maps to exactly one state; unrecognized values become StateUnknown.
func Normalize(status string, conclusion *string) NormalizedState {
	if status == string(StateNoRuns) {
		return StateNoRuns
	}

	effective := status
	if conclusion != nil {
		effective = *conclusion
	}

	switch effective {
	case "success":
		return StateSuccess
	case "failure", "timed_out":
		return StateFailure
	case "cancelled", "skipped": //nolint:misspell // GitHub API spelling.
		return StateCancelled
	case "queued", "running", "in_progress":
		return StateRunning
	case "error":
		return StateError
	case "pending", "action_required":
		return StatePending
	default:
		return StateUnknown
	}
}
