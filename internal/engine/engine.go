package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const engineSubsystem = "Engine"

// Labels set on every container and network diracci creates.
const (
	LabelProject = "org.diracgrid.ci.project"
	LabelRun     = "org.diracgrid.ci.run"
	LabelRole    = "org.diracgrid.ci.role"
	LabelService = "org.diracgrid.ci.service"
)

const (
	roleHost    = "host"
	roleService = "service"
)

// apiClient is the subset of the Engine API client diracci uses.
type apiClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworkRemove(ctx context.Context, networkID string) error
	Close() error
}

// Engine drives the container engine: the testing host, the topology
// services and command execution inside containers.
type Engine struct {
	api   apiClient
	runID string

	// PullOutput receives image pull progress. Discarded when nil.
	PullOutput io.Writer
}

// New connects to the engine named by the environment (DOCKER_HOST, ...)
// with API version negotiation. runID labels everything this run creates.
func New(runID string) (*Engine, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create engine client: %w", err)
	}
	return &Engine{api: c, runID: runID}, nil
}

// RunID returns the run identifier used in labels.
func (e *Engine) RunID() string { return e.runID }

// Close releases the client connection.
func (e *Engine) Close() error {
	return e.api.Close()
}

func (e *Engine) labels(project, role string) map[string]string {
	labels := map[string]string{
		LabelProject: project,
		LabelRole:    role,
	}
	if e.runID != "" {
		labels[LabelRun] = e.runID
	}
	return labels
}
