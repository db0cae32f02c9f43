// Package wrapper builds the command prefix that forwards a resolved
// environment into the testing host, either as a generated shell script or
// as an in-process exec through the engine.
package wrapper

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/DIRACGrid/diracci/internal/engine"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/DIRACGrid/diracci/internal/sutenv"
	"github.com/DIRACGrid/diracci/pkg/logging"
)

const wrapperSubsystem = "Wrapper"

// RegistryVariable is always forwarded: the host pulls the DIRAC images from it.
const RegistryVariable = "CI_REGISTRY_IMAGE"

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Executor runs a command in a container and returns its exit code.
// *engine.Engine satisfies it.
type Executor interface {
	Exec(ctx context.Context, container string, opts engine.ExecOptions) (int, error)
}

// Wrapper forwards a fixed environment into one container.
type Wrapper struct {
	Container  string
	Env        matrix.Environment
	User       string
	WorkingDir string
	// Interactive allocates a TTY and keeps stdin open.
	Interactive bool
}

// Options drive New.
type Options struct {
	Container string
	Registry  string
	// PassThrough names variables copied from Lookup when set there.
	PassThrough []string
	Lookup      func(string) (string, bool)
}

// New builds the wrapper for one resolved combination. It fails when the
// registry is unset, a pass-through value is rejected by the variable
// catalog, or a variable name is not a valid shell identifier.
func New(resolved matrix.Environment, opts Options) (*Wrapper, error) {
	if opts.Container == "" {
		return nil, fmt.Errorf("wrapper target container is empty")
	}
	if opts.Registry == "" {
		return nil, failure.NewUnsetVariableError("wrapper", RegistryVariable)
	}

	env := resolved.With(RegistryVariable, opts.Registry)

	if opts.Lookup != nil {
		passed := map[string]string{}
		for _, name := range opts.PassThrough {
			value, ok := opts.Lookup(name)
			if !ok {
				logging.Debug(wrapperSubsystem, "Pass-through variable %s is not set, skipping", name)
				continue
			}
			passed[name] = value
			env = env.With(name, value)
		}
		if err := sutenv.Validate(passed); err != nil {
			return nil, fmt.Errorf("pass-through: %w", err)
		}
	}

	for _, v := range env {
		if !namePattern.MatchString(v.Name) {
			return nil, fmt.Errorf("invalid variable name %q", v.Name)
		}
	}

	return &Wrapper{Container: opts.Container, Env: env}, nil
}

// Args returns the docker exec argv running cmd in the container.
func (w *Wrapper) Args(cmd ...string) []string {
	args := []string{"docker", "exec"}
	if w.Interactive {
		args = append(args, "-it")
	}
	for _, v := range w.Env {
		args = append(args, "-e="+v.Name+"="+v.Value)
	}
	if w.User != "" {
		args = append(args, "-u="+w.User)
	}
	if w.WorkingDir != "" {
		args = append(args, "-w="+w.WorkingDir)
	}
	args = append(args, w.Container)
	return append(args, cmd...)
}

// Script renders the wrapper as a bash script. Extra arguments given to the
// script are the command forwarded into the container, and the script exits
// with its status.
func (w *Wrapper) Script() string {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("set -euo pipefail\n")
	b.WriteString("exec docker exec")
	if w.Interactive {
		b.WriteString(" -it")
	}
	for _, v := range w.Env {
		fmt.Fprintf(&b, " \\\n  -e %s=%s", v.Name, Quote(v.Value))
	}
	if w.User != "" {
		fmt.Fprintf(&b, " \\\n  -u %s", Quote(w.User))
	}
	if w.WorkingDir != "" {
		fmt.Fprintf(&b, " \\\n  -w %s", Quote(w.WorkingDir))
	}
	fmt.Fprintf(&b, " \\\n  %s \"$@\"\n", Quote(w.Container))
	return b.String()
}

// WriteScript writes the script to path as an executable file.
func (w *Wrapper) WriteScript(path string) error {
	if err := os.WriteFile(path, []byte(w.Script()), 0o755); err != nil {
		return fmt.Errorf("write wrapper %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("chmod wrapper %s: %w", path, err)
	}
	return nil
}

// Run executes cmd in the container with the wrapper's environment and
// returns the command's exit status.
func (w *Wrapper) Run(ctx context.Context, exec Executor, cmd []string, stdout, stderr io.Writer) (int, error) {
	if len(cmd) == 0 {
		return -1, fmt.Errorf("no command to run in %s", w.Container)
	}
	return exec.Exec(ctx, w.Container, engine.ExecOptions{
		Cmd:        cmd,
		Env:        w.Env.Pairs(),
		User:       w.User,
		WorkingDir: w.WorkingDir,
		Tty:        w.Interactive,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
