package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExecOptions describes a command run inside an existing container.
type ExecOptions struct {
	Cmd        []string
	Env        []string
	User       string
	WorkingDir string
	Tty        bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// execPollInterval spaces the exit code lookups after the output stream
// closes.
var execPollInterval = 100 * time.Millisecond

// Exec runs a command in containerName and returns its exit code. The error
// is non-nil only when the command could not be run at all.
func (e *Engine) Exec(ctx context.Context, containerName string, opts ExecOptions) (int, error) {
	created, err := e.api.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		User:         opts.User,
		WorkingDir:   opts.WorkingDir,
		Env:          opts.Env,
		Cmd:          opts.Cmd,
		Tty:          opts.Tty,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return -1, fmt.Errorf("exec in %q: %w", containerName, err)
	}

	attach, err := e.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{Tty: opts.Tty})
	if err != nil {
		return -1, fmt.Errorf("attach to exec in %q: %w", containerName, err)
	}
	defer attach.Close()

	// Closing the connection unblocks the copy when ctx ends first.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			attach.Close()
		case <-done:
		}
	}()

	if err := copyStreams(attach.Reader, opts.Tty, opts.Stdout, opts.Stderr); err != nil && ctx.Err() == nil {
		return -1, fmt.Errorf("read exec output: %w", err)
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	for {
		inspect, err := e.api.ContainerExecInspect(ctx, created.ID)
		if err != nil {
			return -1, fmt.Errorf("inspect exec in %q: %w", containerName, err)
		}
		if !inspect.Running {
			logging.Debug(engineSubsystem, "Exec %v in %s exited with %d", opts.Cmd, containerName, inspect.ExitCode)
			return inspect.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(execPollInterval):
		}
	}
}

// copyStreams demultiplexes an engine stream. TTY streams are raw.
func copyStreams(r io.Reader, tty bool, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	var err error
	if tty {
		_, err = io.Copy(stdout, r)
	} else {
		_, err = stdcopy.StdCopy(stdout, stderr, r)
	}
	return err
}
