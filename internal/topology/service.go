package topology

import (
	"sort"
	"time"
)

// Condition is the state a dependency must reach before its dependent starts.
type Condition string

const (
	ConditionStarted               Condition = "service_started"
	ConditionHealthy               Condition = "service_healthy"
	ConditionCompletedSuccessfully Condition = "service_completed_successfully"
)

// Docker's health check defaults, applied when the descriptor leaves a field
// unset.
const (
	DefaultHealthInterval = 30 * time.Second
	DefaultHealthTimeout  = 30 * time.Second
	DefaultHealthRetries  = 3
)

// Descriptor is a loaded service topology.
type Descriptor struct {
	Project  string             `json:"project"`
	Source   string             `json:"source"`
	Services map[string]Service `json:"services"`
}

// Names returns the service names sorted.
func (d *Descriptor) Names() []string {
	names := make([]string, 0, len(d.Services))
	for name := range d.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service is one backing service.
type Service struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	ContainerName string            `json:"containerName,omitempty"`
	Hostname      string            `json:"hostname,omitempty"`
	Command       []string          `json:"command,omitempty"`
	Privileged    bool              `json:"privileged,omitempty"`
	Environment   map[string]string `json:"environment,omitempty"`
	Ports         []Port            `json:"ports,omitempty"`
	Binds         []string          `json:"binds,omitempty"`
	HealthCheck   *HealthCheck      `json:"healthcheck,omitempty"`
	DependsOn     []Dependency      `json:"dependsOn,omitempty"`
}

// Container returns the container name, falling back to <project>-<service>.
func (s Service) Container(project string) string {
	if s.ContainerName != "" {
		return s.ContainerName
	}
	return project + "-" + s.Name
}

// Port maps a container port to an optional published host port.
type Port struct {
	Published string `json:"published,omitempty"`
	Target    uint32 `json:"target"`
	Protocol  string `json:"protocol,omitempty"`
}

// HealthCheck is a readiness probe run by the container engine.
type HealthCheck struct {
	Test        []string      `json:"test"`
	Interval    time.Duration `json:"interval"`
	Timeout     time.Duration `json:"timeout"`
	StartPeriod time.Duration `json:"startPeriod,omitempty"`
	Retries     int           `json:"retries"`
}

// Budget is how long a dependent waits for this check to pass before the
// service counts as failed.
func (h HealthCheck) Budget() time.Duration {
	return h.StartPeriod + time.Duration(h.Retries)*(h.Interval+h.Timeout)
}

// Dependency is an edge to another service with the condition to wait for.
type Dependency struct {
	Service   string    `json:"service"`
	Condition Condition `json:"condition"`
}
