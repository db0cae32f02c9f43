package diracci

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/DIRACGrid/diracci/internal/engine"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/DIRACGrid/diracci/internal/pipeline"
	"github.com/DIRACGrid/diracci/internal/topology"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	runSel  selection
	runKeep bool
)

var runCmd = &cobra.Command{
	Use:   "run [index|name]",
	Short: "Run the phases of one combination",
	Long: `Run resolves one combination, starts the testing host, brings the service
topology up behind its health checks and runs the phases in order:
prepare, install-server, install-client, test-server, test-client,
collect-logs and check-errors.

A failed phase stops the sequence. collect-logs still runs; check-errors
does not and the run fails. Exit status: 0 passed, 1 phase failure,
2 environment setup failure, 124 job timeout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMatrix()
		if err != nil {
			return err
		}
		c, err := runSel.combination(m, args)
		if err != nil {
			return err
		}

		report, err := runCombination(cmd.Context(), m, c, runKeep, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if report != nil {
			report.Render(cmd.OutOrStdout(), c.Label())
		}
		return err
	},
}

func init() {
	runSel.addFlags(runCmd.Flags())
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "leave the containers running after the run")
}

// runCombination runs every phase for c. The report is nil when the run
// failed before the first phase.
func runCombination(ctx context.Context, m *matrix.Matrix, c matrix.Combination, keep bool, stdout, stderr io.Writer) (*pipeline.Report, error) {
	env, err := m.Resolve(c)
	if err != nil {
		return nil, err
	}
	for _, v := range env {
		logging.Debug("Matrix", "%s=%s", v.Name, v.Value)
	}

	desc, err := loadDescriptor(ctx, env)
	if err != nil {
		return nil, err
	}
	w, err := newWrapper(env)
	if err != nil {
		return nil, err
	}

	eng, err := newEngine()
	if err != nil {
		return nil, err
	}
	defer eng.Close()
	logging.Info("Run", "Run %s: %s", eng.RunID(), c.Label())

	if !keep {
		defer func() {
			// The run context may already be cancelled.
			teardownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := eng.Down(teardownCtx, desc.Project); err != nil {
				logging.Warn("Run", "Teardown of %s failed: %v", desc.Project, err)
			}
		}()
	}

	timeout := cfg.JobTimeout
	if m.Timeout > 0 && (timeout <= 0 || m.Timeout < timeout) {
		timeout = m.Timeout
	}
	// The ceiling covers the testing host as well as the phases.
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := startTestingHost(ctx, eng, hostSpec(), timeout); err != nil {
		return nil, err
	}

	gate := &topology.Gate{
		Runtime: eng,
		OnReady: func(service string, condition topology.Condition) {
			logging.Info("Topology", "%s: %s", service, condition)
		},
	}
	dir := logDir(c)

	runner := &pipeline.Runner{
		Wrapper:  w,
		Exec:     eng,
		Commands: cfg.Phases,
		Setup: func(ctx context.Context) error {
			return gate.Up(ctx, desc)
		},
		CollectLogs: func(ctx context.Context) error {
			return saveServiceLogs(ctx, eng, desc, dir)
		},
		Timeout: timeout,
		Stdout:  stdout,
		Stderr:  stderr,
	}
	return runner.Run(ctx)
}

type hostStarter interface {
	StartHost(ctx context.Context, spec engine.HostSpec) (string, error)
}

// startTestingHost starts the testing host. Reaching the deadline of ctx is a
// job timeout and cancellation is returned as is; any other failure is a
// setup error.
func startTestingHost(ctx context.Context, h hostStarter, spec engine.HostSpec, ceiling time.Duration) error {
	_, err := h.StartHost(ctx, spec)
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &failure.TimeoutError{Ceiling: ceiling, Phase: "testing host"}
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return failure.NewSetupError("testing host", "start", err)
}
