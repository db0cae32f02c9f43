package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DIRACGrid/diracci/internal/engine"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/wrapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommands() map[string]string {
	commands := map[string]string{}
	for _, p := range Order {
		commands[string(p)] = "run " + string(p)
	}
	return commands
}

// scriptedExec maps a command to its exit code and records the order in
// which commands ran.
type scriptedExec struct {
	mu    sync.Mutex
	codes map[string]int
	block map[string]bool
	ran   []string
}

func (s *scriptedExec) Exec(ctx context.Context, _ string, opts engine.ExecOptions) (int, error) {
	cmd := opts.Cmd[len(opts.Cmd)-1]
	s.mu.Lock()
	s.ran = append(s.ran, cmd)
	block := s.block[cmd]
	code := s.codes[cmd]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return code, nil
}

func newRunner(exec *scriptedExec) *Runner {
	return &Runner{
		Wrapper:  &wrapper.Wrapper{Container: "dirac-testing-host"},
		Exec:     exec,
		Commands: testCommands(),
	}
}

func statuses(r *Report) map[Phase]Status {
	out := map[Phase]Status{}
	for _, res := range r.Results {
		out[res.Phase] = res.Status
	}
	return out
}

func TestRun_AllPhasesInOrder(t *testing.T) {
	exec := &scriptedExec{}
	r := newRunner(exec)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed())

	want := make([]string, len(Order))
	for i, p := range Order {
		want[i] = "run " + string(p)
	}
	assert.Equal(t, want, exec.ran)
	require.Len(t, report.Results, len(Order))
	for i, res := range report.Results {
		assert.Equal(t, Order[i], res.Phase)
		assert.Equal(t, StatusPassed, res.Status)
	}
}

func TestRun_FailureStopsSequenceButCollectsLogs(t *testing.T) {
	exec := &scriptedExec{codes: map[string]int{"run install-server": 4}}
	r := newRunner(exec)

	collected := false
	r.CollectLogs = func(context.Context) error {
		collected = true
		return nil
	}

	report, err := r.Run(context.Background())

	var phaseErr *failure.PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, "install-server", phaseErr.Phase)
	assert.Equal(t, 4, phaseErr.ExitCode)
	assert.Equal(t, failure.ExitFailure, failure.ExitCode(err))

	assert.Equal(t, []string{"run prepare", "run install-server", "run collect-logs"}, exec.ran)
	assert.True(t, collected)
	assert.False(t, report.Passed())

	assert.Equal(t, map[Phase]Status{
		PhasePrepare:       StatusPassed,
		PhaseInstallServer: StatusFailed,
		PhaseInstallClient: StatusSkipped,
		PhaseTestServer:    StatusSkipped,
		PhaseTestClient:    StatusSkipped,
		PhaseCollectLogs:   StatusPassed,
		PhaseCheckErrors:   StatusSkipped,
	}, statuses(report))
}

func TestRun_ServerTestsFinishBeforeClientTests(t *testing.T) {
	exec := &scriptedExec{codes: map[string]int{"run test-server": 1}}
	r := newRunner(exec)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.NotContains(t, exec.ran, "run test-client")
	assert.Less(t, indexOf(exec.ran, "run install-server"), indexOf(exec.ran, "run test-server"))
}

func TestRun_CheckErrorsIsAuthoritative(t *testing.T) {
	exec := &scriptedExec{codes: map[string]int{"run check-errors": 1}}
	r := newRunner(exec)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.False(t, report.Passed())

	res, ok := report.Result(PhaseCheckErrors)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRun_SetupFailureRunsNoPrepareCommand(t *testing.T) {
	exec := &scriptedExec{}
	r := newRunner(exec)
	r.Setup = func(context.Context) error {
		return failure.NewSetupError("mysql", "never became healthy", nil)
	}

	report, err := r.Run(context.Background())
	assert.True(t, failure.IsSetup(err))
	assert.Equal(t, failure.ExitSetup, failure.ExitCode(err))
	assert.Equal(t, []string{"run collect-logs"}, exec.ran)
	assert.Equal(t, StatusFailed, statuses(report)[PhasePrepare])
}

func TestRun_Timeout(t *testing.T) {
	exec := &scriptedExec{block: map[string]bool{"run test-server": true}}
	r := newRunner(exec)
	r.Timeout = 20 * time.Millisecond

	report, err := r.Run(context.Background())

	var timeout *failure.TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, "test-server", timeout.Phase)
	assert.Equal(t, failure.ExitTimeout, failure.ExitCode(err))
	assert.NotContains(t, exec.ran, "run collect-logs")
	assert.Equal(t, StatusSkipped, statuses(report)[PhaseCollectLogs])
}

func TestRun_MissingCommand(t *testing.T) {
	exec := &scriptedExec{}
	r := newRunner(exec)
	delete(r.Commands, string(PhaseInstallClient))

	_, err := r.Run(context.Background())

	var phaseErr *failure.PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, "install-client", phaseErr.Phase)
}

func TestRun_PhaseSubsetKeepsOrder(t *testing.T) {
	exec := &scriptedExec{}
	r := newRunner(exec)
	r.Phases = []Phase{PhaseInstallClient, PhasePrepare}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"run prepare", "run install-client"}, exec.ran)
	assert.Len(t, report.Results, 2)
	assert.False(t, report.Passed())
}

func TestReportRender(t *testing.T) {
	exec := &scriptedExec{codes: map[string]int{"run test-client": 2}}
	report, _ := newRunner(exec).Run(context.Background())

	var buf bytes.Buffer
	report.Render(&buf, "HOST_OS=cc7")
	out := buf.String()

	assert.Contains(t, out, "HOST_OS=cc7")
	for _, p := range Order {
		assert.Contains(t, out, string(p))
	}
	assert.True(t, strings.Contains(out, "skipped"))
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
