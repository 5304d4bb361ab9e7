// Package dispatch fans a built report document out to the requested
// handlers and collects per-handler outcomes into a run result.
package dispatch

// Status classifies a single handler delivery.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome is the result of one handler's delivery attempt. Failure of
// one handler never aborts its siblings, so a run always carries one
// outcome per requested handler.
type Outcome struct {
	Handler string
	Status  Status
	Err     error
}

// RunStatus classifies a whole dispatch run.
type RunStatus string

const (
	// RunSuccess: every requested handler delivered.
	RunSuccess RunStatus = "success"
	// RunPartialFailure: at least one handler delivered and at least
	// one failed. Distinct from total failure so an operator can tell
	// "some deliveries happened" from "nothing happened".
	RunPartialFailure RunStatus = "partial-failure"
	// RunFatalFailure: no handler delivered.
	RunFatalFailure RunStatus = "fatal-failure"
)

// RunResult summarizes one dispatch run: the overall status plus the
// full per-handler outcome list, in the order handlers were attempted.
type RunResult struct {
	RunID         string
	Period        string
	Status        RunStatus
	Outcomes      []Outcome
	SkippedEvents int
}

// Succeeded reports whether every handler delivered.
func (r *RunResult) Succeeded() bool {
	return r.Status == RunSuccess
}

// FailedHandlers returns the names of handlers that failed, in attempt
// order.
func (r *RunResult) FailedHandlers() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o.Handler)
		}
	}
	return failed
}

func runStatus(outcomes []Outcome) RunStatus {
	succeeded := 0
	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			succeeded++
		}
	}
	switch {
	case succeeded == len(outcomes):
		return RunSuccess
	case succeeded == 0:
		return RunFatalFailure
	default:
		return RunPartialFailure
	}
}
