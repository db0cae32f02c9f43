// Package pipeline runs the fixed sequence of phases of one matrix
// combination inside the testing host.
package pipeline

// Phase names one step of a run.
type Phase string

const (
	PhasePrepare       Phase = "prepare"
	PhaseInstallServer Phase = "install-server"
	PhaseInstallClient Phase = "install-client"
	PhaseTestServer    Phase = "test-server"
	PhaseTestClient    Phase = "test-client"
	PhaseCollectLogs   Phase = "collect-logs"
	PhaseCheckErrors   Phase = "check-errors"
)

// Order is the only order phases run in.
var Order = []Phase{
	PhasePrepare,
	PhaseInstallServer,
	PhaseInstallClient,
	PhaseTestServer,
	PhaseTestClient,
	PhaseCollectLogs,
	PhaseCheckErrors,
}

// Always reports whether p still runs after an earlier phase failed.
func (p Phase) Always() bool {
	return p == PhaseCollectLogs
}

// Status is the outcome of one phase.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)
