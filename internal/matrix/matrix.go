package matrix

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DIRACGrid/diracci/internal/failure"
)

// Combination is one include entry: a partial assignment of axis values.
type Combination struct {
	Name   string            `json:"name,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// Label returns a human readable identifier for the combination.
func (c Combination) Label() string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Values) == 0 {
		return "defaults"
	}
	keys := make([]string, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+c.Values[k])
	}
	return strings.Join(parts, ",")
}

// Matrix is a set of axes, their defaults and the declared combinations.
type Matrix struct {
	Axes     []Axis
	Defaults map[string]Value
	Include  []Combination

	// FailFast mirrors the workflow strategy setting. Runs never honour it as
	// true: a failed combination does not cancel its siblings.
	FailFast bool
	// Timeout is the job ceiling declared by the source, zero when absent.
	Timeout time.Duration
}

// New returns a matrix over axes with a copy of defaults.
func New(axes []Axis, defaults map[string]Value) *Matrix {
	m := &Matrix{
		Axes:     slices.Clone(axes),
		Defaults: make(map[string]Value, len(defaults)),
	}
	for k, v := range defaults {
		m.Defaults[k] = v
	}
	return m
}

// NewStandard returns an empty matrix over StandardAxes and StandardDefaults.
func NewStandard() *Matrix {
	return New(StandardAxes(), StandardDefaults())
}

// OverlayDefaults replaces defaults from MATRIX_DEFAULT_* style variables.
// Keys without the prefix and keys that no axis reads are ignored.
func (m *Matrix) OverlayDefaults(vars map[string]string) {
	known := make(map[string]bool)
	for _, axis := range m.Axes {
		known[axis.DefaultName()] = true
	}
	for name, raw := range vars {
		key, ok := strings.CutPrefix(name, DefaultsPrefix)
		if !ok || !known[key] {
			continue
		}
		m.Defaults[key] = ParseValue(raw)
	}
}

func (m *Matrix) axis(name string) (Axis, bool) {
	for _, a := range m.Axes {
		if a.Name == name {
			return a, true
		}
	}
	return Axis{}, false
}

// Validate checks a combination only names declared axes.
func (m *Matrix) Validate(c Combination) error {
	var unknown []string
	for key := range c.Values {
		if _, ok := m.axis(key); !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("combination %s: unknown axis %s", c.Label(), strings.Join(unknown, ", "))
	}
	return nil
}

// Value returns the resolved value of one axis for c: the explicit override
// when c names the axis (the sentinel included), the declared default
// otherwise.
func (m *Matrix) Value(axis Axis, c Combination) Value {
	override := ParseValue(c.Values[axis.Name])
	return override.Or(m.Defaults[axis.DefaultName()])
}

// Resolve assigns every axis a value for c and returns the variables to emit.
// Optional axes that resolve to absent or to the sentinel are omitted. A
// required axis that resolves to either is an error and nothing is returned.
func (m *Matrix) Resolve(c Combination) (Environment, error) {
	if err := m.Validate(c); err != nil {
		return nil, err
	}

	env := make(Environment, 0, len(m.Axes))
	var unset []string
	for _, axis := range m.Axes {
		v, ok := m.Value(axis, c).Get()
		if !ok {
			if !axis.Optional {
				unset = append(unset, axis.Name)
			}
			continue
		}
		env = append(env, Variable{Name: axis.EnvName(), Value: v})
	}
	if len(unset) > 0 {
		return nil, failure.NewUnsetVariableError("combination "+c.Label(), unset...)
	}
	return env, nil
}

// Values returns the distinct explicit values declared for an axis across the
// include list, in first-seen order.
func (m *Matrix) Values(axisName string) []string {
	var out []string
	for _, c := range m.Include {
		if v, ok := c.Values[axisName]; ok && v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Find selects a combination by its index in Include or by its label.
func (m *Matrix) Find(selector string) (Combination, error) {
	if idx, err := strconv.Atoi(selector); err == nil {
		if idx < 0 || idx >= len(m.Include) {
			return Combination{}, fmt.Errorf("combination index %d out of range (have %d)", idx, len(m.Include))
		}
		return m.Include[idx], nil
	}
	for _, c := range m.Include {
		if c.Label() == selector {
			return c, nil
		}
	}
	return Combination{}, fmt.Errorf("no combination named %q", selector)
}

// ParseAssignments builds a combination from NAME=value pairs. The label key
// sets the combination name.
func ParseAssignments(pairs []string) (Combination, error) {
	c := Combination{Values: make(map[string]string)}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return Combination{}, fmt.Errorf("invalid assignment %q, expected NAME=value", pair)
		}
		if name == LabelKey {
			c.Name = value
			continue
		}
		if !ParseValue(value).IsAbsent() {
			c.Values[name] = value
		}
	}
	return c, nil
}
