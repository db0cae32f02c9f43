package topology

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/compose-spec/compose-go/v2/loader"
	composeTypes "github.com/compose-spec/compose-go/v2/types"
)

// Load reads the descriptor at path. inputs is the complete set of variables
// the descriptor may reference; the process environment is not consulted.
func Load(ctx context.Context, path, project string, inputs map[string]string) (*Descriptor, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	return Parse(ctx, path, content, project, inputs)
}

// Parse loads a descriptor from content. Every variable it references must be
// present in inputs.
func Parse(ctx context.Context, filename string, content []byte, project string, inputs map[string]string) (*Descriptor, error) {
	if err := CheckInputs(filename, content, inputs); err != nil {
		return nil, err
	}

	workingDir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		workingDir = "."
	}

	configDetails := composeTypes.ConfigDetails{
		WorkingDir: workingDir,
		ConfigFiles: []composeTypes.ConfigFile{
			{
				Filename: filename,
				Content:  content,
			},
		},
		Environment: composeTypes.Mapping(inputs),
	}

	composeProject, err := loader.LoadWithContext(ctx, configDetails, func(options *loader.Options) {
		options.SetProjectName(project, true)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load compose project: %w", err)
	}

	d := &Descriptor{
		Project:  composeProject.Name,
		Source:   filename,
		Services: make(map[string]Service, len(composeProject.Services)),
	}
	for name, composeService := range composeProject.Services {
		d.Services[name] = convertService(name, composeService)
	}

	if _, err := d.StartOrder(); err != nil {
		return nil, err
	}
	return d, nil
}

func convertService(name string, composeService composeTypes.ServiceConfig) Service {
	env := make(map[string]string, len(composeService.Environment))
	for key, value := range composeService.Environment {
		if value == nil {
			continue
		}
		env[key] = *value
	}

	ports := make([]Port, 0, len(composeService.Ports))
	for _, port := range composeService.Ports {
		ports = append(ports, Port{
			Published: port.Published,
			Target:    port.Target,
			Protocol:  port.Protocol,
		})
	}

	var binds []string
	for _, vol := range composeService.Volumes {
		if vol.Type != composeTypes.VolumeTypeBind || vol.Source == "" {
			continue
		}
		bind := vol.Source + ":" + vol.Target
		if vol.ReadOnly {
			bind += ":ro"
		}
		binds = append(binds, bind)
	}

	deps := make([]Dependency, 0, len(composeService.DependsOn))
	for dep, cfg := range composeService.DependsOn {
		cond := Condition(cfg.Condition)
		if cond == "" {
			cond = ConditionStarted
		}
		deps = append(deps, Dependency{Service: dep, Condition: cond})
	}
	sortDependencies(deps)

	return Service{
		Name:          name,
		Image:         composeService.Image,
		ContainerName: composeService.ContainerName,
		Hostname:      composeService.Hostname,
		Command:       []string(composeService.Command),
		Privileged:    composeService.Privileged,
		Environment:   env,
		Ports:         ports,
		Binds:         binds,
		HealthCheck:   convertHealthCheck(composeService.HealthCheck),
		DependsOn:     deps,
	}
}

func convertHealthCheck(hc *composeTypes.HealthCheckConfig) *HealthCheck {
	if hc == nil || hc.Disable || len(hc.Test) == 0 || strings.EqualFold(hc.Test[0], "NONE") {
		return nil
	}

	check := &HealthCheck{
		Test:     []string(hc.Test),
		Interval: DefaultHealthInterval,
		Timeout:  DefaultHealthTimeout,
		Retries:  DefaultHealthRetries,
	}
	if hc.Interval != nil {
		check.Interval = time.Duration(*hc.Interval)
	}
	if hc.Timeout != nil {
		check.Timeout = time.Duration(*hc.Timeout)
	}
	if hc.StartPeriod != nil {
		check.StartPeriod = time.Duration(*hc.StartPeriod)
	}
	if hc.Retries != nil {
		check.Retries = int(*hc.Retries)
	}
	return check
}
