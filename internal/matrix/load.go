package matrix

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads a matrix definition. TOML files use the matrix file layout,
// anything else is parsed as a GitHub Actions workflow and job selects the job
// whose strategy to read (empty picks the only job with a matrix).
func Load(path, job string, base *Matrix) (*Matrix, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix source: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ParseTOML(content, base)
	default:
		return ParseWorkflow(content, job, base)
	}
}

type workflowFile struct {
	Env  map[string]yaml.Node   `yaml:"env"`
	Jobs map[string]workflowJob `yaml:"jobs"`
}

type workflowJob struct {
	Env            map[string]yaml.Node `yaml:"env"`
	TimeoutMinutes yaml.Node            `yaml:"timeout-minutes"`
	Strategy       struct {
		FailFast yaml.Node `yaml:"fail-fast"`
		Matrix   struct {
			Include []map[string]yaml.Node `yaml:"include"`
		} `yaml:"matrix"`
	} `yaml:"strategy"`
}

// ParseWorkflow extracts the matrix of one job from workflow YAML. Scalars
// are kept as written, so MYSQL_VER: 8.0 resolves to "8.0".
func ParseWorkflow(content []byte, job string, base *Matrix) (*Matrix, error) {
	var wf workflowFile
	if err := yaml.Unmarshal(content, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}

	name, j, err := selectJob(wf.Jobs, job)
	if err != nil {
		return nil, err
	}

	m := cloneOrStandard(base)

	env := scalarMap(wf.Env)
	for k, v := range scalarMap(j.Env) {
		env[k] = v
	}
	m.OverlayDefaults(env)

	m.FailFast = true
	if raw := scalar(j.Strategy.FailFast); raw != "" {
		ff, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("job %s: invalid fail-fast %q: %w", name, raw, err)
		}
		m.FailFast = ff
	}

	if raw := scalar(j.TimeoutMinutes); raw != "" && !strings.Contains(raw, "${{") {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("job %s: invalid timeout-minutes %q: %w", name, raw, err)
		}
		m.Timeout = time.Duration(minutes) * time.Minute
	}

	for i, entry := range j.Strategy.Matrix.Include {
		c := Combination{Values: make(map[string]string)}
		for key, node := range entry {
			if node.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("job %s: include[%d].%s must be a scalar", name, i, key)
			}
			if err := addEntry(&c, key, node.Value); err != nil {
				return nil, err
			}
		}
		if err := m.Validate(c); err != nil {
			return nil, fmt.Errorf("job %s: include[%d]: %w", name, i, err)
		}
		m.Include = append(m.Include, c)
	}

	return m, nil
}

func selectJob(jobs map[string]workflowJob, job string) (string, workflowJob, error) {
	if job != "" {
		j, ok := jobs[job]
		if !ok {
			return "", workflowJob{}, fmt.Errorf("workflow has no job %q", job)
		}
		return job, j, nil
	}

	var candidates []string
	for name, j := range jobs {
		if len(j.Strategy.Matrix.Include) > 0 {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)
	if len(candidates) != 1 {
		return "", workflowJob{}, fmt.Errorf("cannot pick a matrix job, candidates: [%s]", strings.Join(candidates, ", "))
	}
	return candidates[0], jobs[candidates[0]], nil
}

type tomlMatrix struct {
	FailFast *bool               `toml:"fail-fast"`
	Timeout  string              `toml:"timeout"`
	Defaults map[string]string   `toml:"defaults"`
	Include  []map[string]string `toml:"include"`
}

// ParseTOML reads a matrix file:
//
//	fail-fast = false
//	timeout = "2h"
//
//	[defaults]
//	HOST_OS = "cc7"
//
//	[[include]]
//	TEST_NAME = "MySQL 8.0"
//	MYSQL_VER = "8.0"
//
// Default keys may be given with or without the MATRIX_DEFAULT_ prefix.
func ParseTOML(content []byte, base *Matrix) (*Matrix, error) {
	var tm tomlMatrix
	if _, err := toml.Decode(string(content), &tm); err != nil {
		return nil, fmt.Errorf("failed to parse matrix file: %w", err)
	}

	m := cloneOrStandard(base)

	defaults := make(map[string]string, len(tm.Defaults))
	for k, v := range tm.Defaults {
		if !strings.HasPrefix(k, DefaultsPrefix) {
			k = DefaultsPrefix + k
		}
		defaults[k] = v
	}
	m.OverlayDefaults(defaults)

	m.FailFast = true
	if tm.FailFast != nil {
		m.FailFast = *tm.FailFast
	}
	if tm.Timeout != "" {
		d, err := time.ParseDuration(tm.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", tm.Timeout, err)
		}
		m.Timeout = d
	}

	for i, entry := range tm.Include {
		c := Combination{Values: make(map[string]string)}
		for key, value := range entry {
			if err := addEntry(&c, key, value); err != nil {
				return nil, err
			}
		}
		if err := m.Validate(c); err != nil {
			return nil, fmt.Errorf("include[%d]: %w", i, err)
		}
		m.Include = append(m.Include, c)
	}

	return m, nil
}

func addEntry(c *Combination, key, value string) error {
	if key == LabelKey {
		c.Name = value
		return nil
	}
	// The sentinel is kept so it overrides the declared default.
	if !ParseValue(value).IsAbsent() {
		c.Values[key] = value
	}
	return nil
}

func cloneOrStandard(base *Matrix) *Matrix {
	if base == nil {
		return NewStandard()
	}
	return New(base.Axes, base.Defaults)
}

func scalar(n yaml.Node) string {
	if n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

func scalarMap(nodes map[string]yaml.Node) map[string]string {
	out := make(map[string]string, len(nodes))
	for k, n := range nodes {
		if n.Kind == yaml.ScalarNode {
			out[k] = n.Value
		}
	}
	return out
}
