package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/DIRACGrid/diracci/internal/topology"
	"github.com/DIRACGrid/diracci/pkg/logging"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
)

// NetworkName is the network shared by a project's containers.
func NetworkName(project string) string {
	return project + "_default"
}

// Start replaces any stale container for svc and starts a fresh one on the
// project network. Start implements topology.Runtime.
func (e *Engine) Start(ctx context.Context, project string, svc topology.Service) error {
	if err := e.EnsureNetwork(ctx, project); err != nil {
		return err
	}

	name := svc.Container(project)
	if err := e.removeIfExists(ctx, name); err != nil {
		return err
	}

	cfg, hostCfg, netCfg, err := e.serviceConfig(project, svc)
	if err != nil {
		return err
	}

	id, err := e.createContainer(ctx, name, cfg, hostCfg, netCfg)
	if err != nil {
		return err
	}
	if err := e.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}

	logging.Debug(engineSubsystem, "Started %s as %s", svc.Name, shortID(id))
	return nil
}

// Inspect reports the container state of svc. A missing container is
// reported as not running. Inspect implements topology.Runtime.
func (e *Engine) Inspect(ctx context.Context, project string, svc topology.Service) (topology.State, error) {
	info, err := e.api.ContainerInspect(ctx, svc.Container(project))
	if err != nil {
		if errdefs.IsNotFound(err) {
			return topology.State{}, nil
		}
		return topology.State{}, fmt.Errorf("inspect %q: %w", svc.Name, err)
	}
	return stateOf(info), nil
}

func stateOf(info container.InspectResponse) topology.State {
	if info.ContainerJSONBase == nil || info.State == nil {
		return topology.State{}
	}
	st := info.State
	state := topology.State{
		Running:  st.Running,
		Exited:   st.Status == "exited" || st.Status == "dead",
		ExitCode: st.ExitCode,
	}
	if st.Health != nil {
		state.Health = topology.Health(st.Health.Status)
	}
	return state
}

func (e *Engine) serviceConfig(project string, svc topology.Service) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	exposed, bindings, err := portMappings(svc.Ports)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("service %q: %w", svc.Name, err)
	}

	labels := e.labels(project, roleService)
	labels[LabelService] = svc.Name

	cfg := &container.Config{
		Image:        svc.Image,
		Hostname:     svc.Hostname,
		Env:          envList(svc.Environment),
		ExposedPorts: exposed,
		Labels:       labels,
	}
	if len(svc.Command) > 0 {
		cfg.Cmd = svc.Command
	}
	if hc := svc.HealthCheck; hc != nil {
		cfg.Healthcheck = &container.HealthConfig{
			Test:        hc.Test,
			Interval:    hc.Interval,
			Timeout:     hc.Timeout,
			StartPeriod: hc.StartPeriod,
			Retries:     hc.Retries,
		}
	}

	hostCfg := &container.HostConfig{
		Binds:        svc.Binds,
		PortBindings: bindings,
		Privileged:   svc.Privileged,
	}

	// Services reach each other by service name and by container name.
	aliases := []string{svc.Name}
	if svc.ContainerName != "" && svc.ContainerName != svc.Name {
		aliases = append(aliases, svc.ContainerName)
	}
	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			NetworkName(project): {Aliases: aliases},
		},
	}
	return cfg, hostCfg, netCfg, nil
}

func portMappings(ports []topology.Port) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.FormatUint(uint64(p.Target), 10))
		if err != nil {
			return nil, nil, fmt.Errorf("port %d: %w", p.Target, err)
		}
		exposed[port] = struct{}{}
		if p.Published != "" {
			bindings[port] = append(bindings[port], nat.PortBinding{HostPort: p.Published})
		}
	}
	return exposed, bindings, nil
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// EnsureNetwork creates the project network unless it already exists.
func (e *Engine) EnsureNetwork(ctx context.Context, project string) error {
	name := NetworkName(project)
	if _, err := e.api.NetworkInspect(ctx, name, network.InspectOptions{}); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect network %q: %w", name, err)
	}

	_, err := e.api.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: e.labels(project, roleService),
	})
	if err != nil && !errdefs.IsConflict(err) {
		return fmt.Errorf("create network %q: %w", name, err)
	}
	logging.Debug(engineSubsystem, "Created network %s", name)
	return nil
}

// Down removes every container labelled with project, then the project
// network. Containers already gone are ignored.
func (e *Engine) Down(ctx context.Context, project string) error {
	list, err := e.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelProject+"="+project)),
	})
	if err != nil {
		return fmt.Errorf("list containers of %q: %w", project, err)
	}

	for _, c := range list {
		if err := e.removeIfExists(ctx, c.ID); err != nil {
			return err
		}
		logging.Info(engineSubsystem, "Removed %s", containerLabel(c))
	}

	if err := e.api.NetworkRemove(ctx, NetworkName(project)); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove network %q: %w", NetworkName(project), err)
	}
	return nil
}

func containerLabel(c container.Summary) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	return shortID(c.ID)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
