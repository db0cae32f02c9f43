package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
)

// HostSpec describes the testing host container.
type HostSpec struct {
	Project string
	Name    string
	Image   string
	// Source is the host directory mounted at Workdir.
	Source  string
	Workdir string
	// Socket is the engine socket, mounted at the same path so the host can
	// drive sibling containers.
	Socket  string
	Command []string
	Env     map[string]string
}

// StartHost replaces any existing container called spec.Name with a fresh,
// privileged testing host attached to the project network.
func (e *Engine) StartHost(ctx context.Context, spec HostSpec) (string, error) {
	source, err := filepath.Abs(spec.Source)
	if err != nil {
		return "", fmt.Errorf("resolve source %q: %w", spec.Source, err)
	}

	if err := e.EnsureNetwork(ctx, spec.Project); err != nil {
		return "", err
	}
	if err := e.removeIfExists(ctx, spec.Name); err != nil {
		return "", err
	}

	cfg := &container.Config{
		Image:      spec.Image,
		Hostname:   spec.Name,
		WorkingDir: spec.Workdir,
		Cmd:        spec.Command,
		Env:        envList(spec.Env),
		Labels:     e.labels(spec.Project, roleHost),
	}
	hostCfg := &container.HostConfig{
		Privileged: true,
		Binds: []string{
			spec.Socket + ":" + spec.Socket,
			source + ":" + spec.Workdir,
		},
	}
	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			NetworkName(spec.Project): {Aliases: []string{spec.Name}},
		},
	}

	id, err := e.createContainer(ctx, spec.Name, cfg, hostCfg, netCfg)
	if err != nil {
		return "", err
	}
	if err := e.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start testing host %q: %w", spec.Name, err)
	}

	logging.Info(engineSubsystem, "Testing host %s started (%s)", spec.Name, shortID(id))
	return id, nil
}
