package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Process exit codes for each failure class.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitSetup   = 2
	ExitTimeout = 124
)

// SetupError is an environment-setup failure: a backing service never became
// ready, or the testing host could not be started. No test phase has run.
type SetupError struct {
	Component string
	Reason    string
	Err       error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("environment setup failed: %s: %s", e.Component, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SetupError) Unwrap() error { return e.Err }

// NewSetupError creates a new SetupError.
func NewSetupError(component, reason string, err error) *SetupError {
	return &SetupError{Component: component, Reason: reason, Err: err}
}

// PhaseError reports a phase whose forwarded command exited non-zero or could
// not be executed.
type PhaseError struct {
	Phase    string
	ExitCode int
	Err      error
}

func (e *PhaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("phase %s failed: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("phase %s failed with exit status %d", e.Phase, e.ExitCode)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// UnsetVariableError lists variables that a step depends on but that were
// never resolved.
type UnsetVariableError struct {
	Context string
	Names   []string
}

func (e *UnsetVariableError) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return fmt.Sprintf("%s: unset variable(s): %s", e.Context, strings.Join(names, ", "))
}

// NewUnsetVariableError creates a new UnsetVariableError.
func NewUnsetVariableError(context string, names ...string) *UnsetVariableError {
	return &UnsetVariableError{Context: context, Names: names}
}

// TimeoutError is returned when the job ceiling elapses before all phases
// complete.
type TimeoutError struct {
	Ceiling time.Duration
	Phase   string
}

func (e *TimeoutError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("job timeout of %s exceeded during phase %s", e.Ceiling, e.Phase)
	}
	return fmt.Sprintf("job timeout of %s exceeded", e.Ceiling)
}

// ExitStatusError carries the exit status of a forwarded command that the
// process reproduces as its own.
type ExitStatusError struct {
	Code int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// IsSetup reports whether err is or wraps a SetupError.
func IsSetup(err error) bool {
	var target *SetupError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// ExitCode maps an error to the process exit status. Timeouts take precedence
// over setup failures so that a run killed while waiting for a service is
// reported as a timeout.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsTimeout(err):
		return ExitTimeout
	case IsSetup(err):
		return ExitSetup
	}
	var status *ExitStatusError
	if errors.As(err, &status) && status.Code > 0 {
		return status.Code
	}
	return ExitFailure
}
