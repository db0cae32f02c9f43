package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/wrapper"
	"github.com/DIRACGrid/diracci/pkg/logging"
)

const pipelineSubsystem = "Pipeline"

// Hook runs orchestrator-side work attached to a phase.
type Hook func(ctx context.Context) error

// Runner executes the phases of one combination.
type Runner struct {
	Wrapper *wrapper.Wrapper
	Exec    wrapper.Executor
	// Commands maps each phase to the shell command run in the host.
	Commands map[string]string
	// Setup runs before the prepare command. Its failure is a setup
	// failure and no command runs.
	Setup Hook
	// CollectLogs runs after the collect-logs command, whatever its status.
	CollectLogs Hook
	// Phases restricts the run to a subset of Order, kept in Order. Empty
	// runs every phase.
	Phases []Phase
	// Timeout is the job ceiling. Zero means none.
	Timeout time.Duration

	Stdout io.Writer
	Stderr io.Writer
}

// Run executes every phase in order. A failed phase stops the sequence except
// for collect-logs, which still runs; check-errors never runs after a failure.
// The returned error is the first failure and the report lists every phase.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	report := &Report{}
	var firstErr error

	for _, phase := range r.phases() {
		if firstErr != nil && (!phase.Always() || failure.IsTimeout(firstErr)) {
			report.add(Result{Phase: phase, Status: StatusSkipped})
			continue
		}

		result := r.runPhase(ctx, phase)
		if errors.Is(result.Err, context.DeadlineExceeded) && ctx.Err() != nil {
			result.Err = &failure.TimeoutError{Ceiling: r.Timeout, Phase: string(phase)}
		}
		report.add(result)

		if result.Err != nil && firstErr == nil {
			firstErr = result.Err
		}
	}

	report.Err = firstErr
	return report, firstErr
}

func (r *Runner) phases() []Phase {
	if len(r.Phases) == 0 {
		return Order
	}
	selected := make([]Phase, 0, len(r.Phases))
	for _, p := range Order {
		if slices.Contains(r.Phases, p) {
			selected = append(selected, p)
		}
	}
	return selected
}

func (r *Runner) runPhase(ctx context.Context, phase Phase) Result {
	start := time.Now()
	result := Result{Phase: phase}
	finish := func(err error) Result {
		result.Duration = time.Since(start)
		result.Err = err
		if err == nil {
			result.Status = StatusPassed
			logging.Info(pipelineSubsystem, "Phase %s passed in %s", phase, result.Duration.Round(time.Second))
		} else {
			result.Status = StatusFailed
			logging.Error(pipelineSubsystem, err, "Phase %s failed", phase)
		}
		return result
	}

	if phase == PhasePrepare && r.Setup != nil {
		if err := r.Setup(ctx); err != nil {
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			return finish(err)
		}
	}

	code, err := r.command(ctx, phase)
	result.ExitCode = code

	if phase == PhaseCollectLogs && r.CollectLogs != nil && ctx.Err() == nil {
		if hookErr := r.CollectLogs(ctx); hookErr != nil {
			logging.Warn(pipelineSubsystem, "Saving service logs failed: %v", hookErr)
		}
	}

	return finish(err)
}

func (r *Runner) command(ctx context.Context, phase Phase) (int, error) {
	cmd, ok := r.Commands[string(phase)]
	if !ok || cmd == "" {
		return -1, &failure.PhaseError{Phase: string(phase), ExitCode: -1, Err: fmt.Errorf("no command configured")}
	}

	logging.Info(pipelineSubsystem, "Running phase %s", phase)
	code, err := r.Wrapper.Run(ctx, r.Exec, []string{"bash", "-c", cmd}, r.Stdout, r.Stderr)
	if err != nil {
		if ctx.Err() != nil {
			return code, ctx.Err()
		}
		return code, &failure.PhaseError{Phase: string(phase), ExitCode: code, Err: err}
	}
	if code != 0 {
		return code, &failure.PhaseError{Phase: string(phase), ExitCode: code}
	}
	return code, nil
}
