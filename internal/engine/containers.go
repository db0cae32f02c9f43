package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
)

// createContainer creates name, pulling the image once if the engine does not
// have it.
func (e *Engine) createContainer(ctx context.Context, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
	created, err := e.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err == nil {
		return created.ID, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("create container %q: %w", name, err)
	}

	if err := e.pull(ctx, cfg.Image); err != nil {
		return "", err
	}

	created, err = e.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return "", fmt.Errorf("create container %q: %w", name, err)
	}
	return created.ID, nil
}

func (e *Engine) pull(ctx context.Context, ref string) error {
	logging.Info(engineSubsystem, "Pulling image %s", ref)

	rc, err := e.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", ref, err)
	}
	defer rc.Close()

	out := e.PullOutput
	if out == nil {
		out = io.Discard
	}
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("pull image %q: %w", ref, err)
	}
	return nil
}

// removeIfExists force-removes name. A missing container is not an error.
func (e *Engine) removeIfExists(ctx context.Context, name string) error {
	err := e.api.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err == nil {
		logging.Debug(engineSubsystem, "Removed stale container %s", name)
		return nil
	}
	if errdefs.IsNotFound(err) {
		return nil
	}
	return fmt.Errorf("remove container %q: %w", name, err)
}

// Running reports whether the named container exists and is running.
func (e *Engine) Running(ctx context.Context, name string) (bool, error) {
	info, err := e.api.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect container %q: %w", name, err)
	}
	return info.ContainerJSONBase != nil && info.State != nil && info.State.Running, nil
}

// Logs copies the logs of a container to stdout and stderr. tail is the
// number of trailing lines ("all" for everything).
func (e *Engine) Logs(ctx context.Context, name, tail string, follow bool, stdout, stderr io.Writer) error {
	rc, err := e.api.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       tail,
	})
	if err != nil {
		return fmt.Errorf("logs of %q: %w", name, err)
	}
	defer rc.Close()

	info, err := e.api.ContainerInspect(ctx, name)
	if err != nil {
		return fmt.Errorf("inspect container %q: %w", name, err)
	}
	tty := info.Config != nil && info.Config.Tty

	return copyStreams(rc, tty, stdout, stderr)
}
