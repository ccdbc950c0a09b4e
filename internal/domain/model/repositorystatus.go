package model

// RunStatus is one row of a workflow's run history. It is either a real run
// (Run != nil) or the no-runs placeholder emitted for a tracked workflow that
// has nothing cached yet. Use NoRunsPlaceholder and RunStatusOf to build one.
type RunStatus struct {
	State NormalizedState
	Run   *RunRecord
}

// NoRunsPlaceholder returns the synthetic row for a workflow with no cached runs.
func NoRunsPlaceholder() RunStatus {
	return RunStatus{State: StateNoRuns}
}

// RunStatusOf wraps a real run with its normalized state.
func RunStatusOf(run RunRecord) RunStatus {
	return RunStatus{State: run.State(), Run: &run}
}

// IsPlaceholder reports whether the row stands in for an empty run history.
func (s RunStatus) IsPlaceholder() bool {
	return s.Run == nil
}

// StatusCounts tallies the latest-run states that feed a roll-up.
type StatusCounts struct {
	Success   int
	Failure   int
	Pending   int
	Running   int
	Cancelled int
}

// Add increments the counter for state. States without a counter are ignored.
func (c *StatusCounts) Add(state NormalizedState) {
	switch state {
	case StateSuccess:
		c.Success++
	case StateFailure:
		c.Failure++
	case StatePending:
		c.Pending++
	case StateRunning:
		c.Running++
	case StateCancelled:
		c.Cancelled++
	}
}

// Merge adds other's counters into c.
func (c *StatusCounts) Merge(other StatusCounts) {
	c.Success += other.Success
	c.Failure += other.Failure
	c.Pending += other.Pending
	c.Running += other.Running
	c.Cancelled += other.Cancelled
}

// RollUp applies the summary priority: error > failure > pending > running >
// success > unknown. Cancelled runs are counted but never decide the state.
func RollUp(counts StatusCounts, hasError bool) NormalizedState {
	switch {
	case hasError:
		return StateError
	case counts.Failure > 0:
		return StateFailure
	case counts.Pending > 0:
		return StatePending
	case counts.Running > 0:
		return StateRunning
	case counts.Success > 0:
		return StateSuccess
	default:
		return StateUnknown
	}
}

// WorkflowStatus is the run history of one tracked workflow on one branch,
// newest first. Runs always has at least one row.
type WorkflowStatus struct {
	WorkflowID         string
	Name               string
	Path               string
	Runs               []RunStatus
	Error              string
	HasPermissionError bool
}

// Latest returns the newest row.
func (w WorkflowStatus) Latest() RunStatus {
	if len(w.Runs) == 0 {
		return NoRunsPlaceholder()
	}
	return w.Runs[0]
}

// BranchStatus rolls up the latest run of every tracked workflow on a branch.
type BranchStatus struct {
	Name               string
	Workflows          []WorkflowStatus
	Counts             StatusCounts
	HasError           bool
	HasPermissionError bool
	State              NormalizedState
}

// RepositoryStatus is the aggregated view of a tracked repository. It is
// built fresh from the run cache on every request and never mutated afterwards.
type RepositoryStatus struct {
	RepositoryID       int64
	ServerID           int64
	FullName           string
	Branches           []BranchStatus
	Counts             StatusCounts
	HasError           bool
	HasPermissionError bool
	State              NormalizedState
}
