package matrix

import (
	"errors"
	"testing"
	"time"

	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_EndToEndScenario(t *testing.T) {
	m := NewStandard()

	env, err := m.Resolve(Combination{Values: map[string]string{
		"MYSQL_VER":           "8.0",
		"SERVER_USE_M2CRYPTO": "No",
		"CLIENT_USE_M2CRYPTO": "Yes",
	}})
	require.NoError(t, err)

	got := env.Map()
	assert.Equal(t, "cc7", got["HOST_OS"])
	assert.Equal(t, "8.0", got["MYSQL_VER"])
	assert.Equal(t, "No", got["SERVER_USE_M2CRYPTO"])
	assert.Equal(t, "Yes", got["CLIENT_USE_M2CRYPTO"])
	assert.NotContains(t, got, "DIRAC_USE_NEWTHREADPOOL")
	assert.NotContains(t, got, "USE_NEWTHREADPOOL")
}

func TestResolve_UnsetAxesTakeDefaults(t *testing.T) {
	m := NewStandard()
	defaults := StandardDefaults()

	combos := []Combination{
		{},
		{Values: map[string]string{"HOST_OS": "slc6"}},
		{Values: map[string]string{"MYSQL_VER": "8.0", "ES_VER": "6.6.0"}},
		{Values: map[string]string{"CLIENT_USE_M2CRYPTO": "No"}},
	}

	for _, c := range combos {
		t.Run(c.Label(), func(t *testing.T) {
			env, err := m.Resolve(c)
			require.NoError(t, err)

			for _, axis := range m.Axes {
				got, present := env.Lookup(axis.EnvName())
				if override, ok := c.Values[axis.Name]; ok {
					assert.True(t, present)
					assert.Equal(t, override, got, axis.Name)
					continue
				}
				want, ok := defaults[axis.DefaultName()].Get()
				assert.Equal(t, ok, present, axis.Name)
				assert.Equal(t, want, got, axis.Name)
			}
		})
	}
}

func TestResolve_RolesAreIndependent(t *testing.T) {
	m := NewStandard()

	a, err := m.Resolve(Combination{Values: map[string]string{"SERVER_USE_M2CRYPTO": "Yes", "CLIENT_USE_M2CRYPTO": "No"}})
	require.NoError(t, err)
	b, err := m.Resolve(Combination{Values: map[string]string{"SERVER_USE_M2CRYPTO": "No", "CLIENT_USE_M2CRYPTO": "Yes"}})
	require.NoError(t, err)

	assert.NotEqual(t, a.Map(), b.Map())
	assert.Equal(t, "Yes", a.Map()["SERVER_USE_M2CRYPTO"])
	assert.Equal(t, "No", a.Map()["CLIENT_USE_M2CRYPTO"])
	assert.Equal(t, "No", b.Map()["SERVER_USE_M2CRYPTO"])
	assert.Equal(t, "Yes", b.Map()["CLIENT_USE_M2CRYPTO"])

	// Setting one role leaves the other on the shared default.
	c, err := m.Resolve(Combination{Values: map[string]string{"SERVER_USE_M2CRYPTO": "No"}})
	require.NoError(t, err)
	assert.Equal(t, "Yes", c.Map()["CLIENT_USE_M2CRYPTO"])
}

func TestResolve_ThreadPoolEmission(t *testing.T) {
	tests := []struct {
		name        string
		override    string
		defaultVal  Value
		wantPresent bool
		want        string
	}{
		{name: "absent default", defaultVal: None(), wantPresent: false},
		{name: "explicit override", override: "Yes", defaultVal: None(), wantPresent: true, want: "Yes"},
		{name: "sentinel override", override: Sentinel, defaultVal: None(), wantPresent: false},
		{name: "present default", defaultVal: Some("No"), wantPresent: true, want: "No"},
		{name: "sentinel override, present default", override: Sentinel, defaultVal: Some("Yes"), wantPresent: false},
		{name: "sentinel default", defaultVal: Unset(), wantPresent: false},
		{name: "explicit override, sentinel default", override: "No", defaultVal: Unset(), wantPresent: true, want: "No"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defaults := StandardDefaults()
			defaults["USE_NEWTHREADPOOL"] = tt.defaultVal
			m := New(StandardAxes(), defaults)

			c := Combination{Values: map[string]string{}}
			if tt.override != "" {
				c.Values["USE_NEWTHREADPOOL"] = tt.override
			}

			env, err := m.Resolve(c)
			require.NoError(t, err)

			got, present := env.Lookup("DIRAC_USE_NEWTHREADPOOL")
			assert.Equal(t, tt.wantPresent, present)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_MissingRequiredDefault(t *testing.T) {
	defaults := StandardDefaults()
	delete(defaults, "ES_VER")
	m := New(StandardAxes(), defaults)

	_, err := m.Resolve(Combination{})
	require.Error(t, err)

	var unset *failure.UnsetVariableError
	require.True(t, errors.As(err, &unset))
	assert.Equal(t, []string{"ES_VER"}, unset.Names)

	// An explicit value fills the gap.
	env, err := m.Resolve(Combination{Values: map[string]string{"ES_VER": "7.9.1"}})
	require.NoError(t, err)
	assert.Equal(t, "7.9.1", env.Map()["ES_VER"])
}

func TestResolve_SentinelOnRequiredAxis(t *testing.T) {
	_, err := NewStandard().Resolve(Combination{Values: map[string]string{"HOST_OS": Sentinel}})
	require.Error(t, err)

	var unset *failure.UnsetVariableError
	require.True(t, errors.As(err, &unset))
	assert.Equal(t, []string{"HOST_OS"}, unset.Names)
}

func TestResolve_UnknownAxis(t *testing.T) {
	_, err := NewStandard().Resolve(Combination{Values: map[string]string{"MYSQL_VERSION": "8.0"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown axis MYSQL_VERSION")
}

func TestOverlayDefaults(t *testing.T) {
	m := NewStandard()
	m.OverlayDefaults(map[string]string{
		"MATRIX_DEFAULT_HOST_OS":           "el9",
		"MATRIX_DEFAULT_USE_M2CRYPTO":      "No",
		"MATRIX_DEFAULT_USE_NEWTHREADPOOL": "default",
		"MATRIX_DEFAULT_UNRELATED":         "x",
		"HOST_OS":                          "ignored",
	})

	assert.Equal(t, Some("el9"), m.Defaults["HOST_OS"])
	assert.Equal(t, Some("No"), m.Defaults["USE_M2CRYPTO"])
	assert.True(t, m.Defaults["USE_NEWTHREADPOOL"].IsSentinel())
	assert.NotContains(t, m.Defaults, "UNRELATED")
}

func TestParseAssignments(t *testing.T) {
	c, err := ParseAssignments([]string{"TEST_NAME=custom", "MYSQL_VER=8.0", "HOST_OS=", "USE_NEWTHREADPOOL=default"})
	require.NoError(t, err)
	assert.Equal(t, "custom", c.Name)
	assert.Equal(t, map[string]string{"MYSQL_VER": "8.0", "USE_NEWTHREADPOOL": Sentinel}, c.Values)

	_, err = ParseAssignments([]string{"MYSQL_VER"})
	require.Error(t, err)
}

func TestCombinationLabel(t *testing.T) {
	assert.Equal(t, "defaults", Combination{}.Label())
	assert.Equal(t, "named", Combination{Name: "named", Values: map[string]string{"A": "1"}}.Label())
	assert.Equal(t, "CLIENT_USE_M2CRYPTO=No,SERVER_USE_M2CRYPTO=Yes",
		Combination{Values: map[string]string{"SERVER_USE_M2CRYPTO": "Yes", "CLIENT_USE_M2CRYPTO": "No"}}.Label())
}

func TestLoadWorkflow(t *testing.T) {
	m, err := Load("testdata/integration.yml", "", nil)
	require.NoError(t, err)

	assert.False(t, m.FailFast)
	assert.Equal(t, 90*time.Minute, m.Timeout)
	require.Len(t, m.Include, 6)
	assert.Equal(t, []string{"8.0"}, m.Values("MYSQL_VER"))
	assert.Equal(t, []string{"No", "Yes"}, m.Values("SERVER_USE_M2CRYPTO"))

	c, err := m.Find("MySQL 8.0")
	require.NoError(t, err)
	env, err := m.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, "8.0", env.Map()["MYSQL_VER"])
	assert.Equal(t, "cc7", env.Map()["HOST_OS"])
	_, present := env.Lookup("DIRAC_USE_NEWTHREADPOOL")
	assert.False(t, present)

	c, err = m.Find("5")
	require.NoError(t, err)
	env, err = m.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, "Yes", env.Map()["DIRAC_USE_NEWTHREADPOOL"])

	_, err = m.Find("17")
	require.Error(t, err)
}

func TestParseWorkflow_SentinelOverridesDefault(t *testing.T) {
	wf := []byte(`
jobs:
  Integration:
    env:
      MATRIX_DEFAULT_USE_NEWTHREADPOOL: "Yes"
    strategy:
      matrix:
        include:
          - TEST_NAME: inherit
          - TEST_NAME: explicit
            USE_NEWTHREADPOOL: default
`)
	m, err := ParseWorkflow(wf, "", nil)
	require.NoError(t, err)

	c, err := m.Find("explicit")
	require.NoError(t, err)
	assert.Equal(t, Sentinel, c.Values["USE_NEWTHREADPOOL"])
	env, err := m.Resolve(c)
	require.NoError(t, err)
	_, present := env.Lookup("DIRAC_USE_NEWTHREADPOOL")
	assert.False(t, present)

	c, err = m.Find("inherit")
	require.NoError(t, err)
	env, err = m.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, "Yes", env.Map()["DIRAC_USE_NEWTHREADPOOL"])
}

func TestValueStates(t *testing.T) {
	assert.True(t, ParseValue("").IsAbsent())
	assert.True(t, ParseValue(Sentinel).IsSentinel())
	assert.True(t, ParseValue("No").IsSet())

	assert.Equal(t, Some("x"), None().Or(Some("x")))
	assert.Equal(t, Unset(), Unset().Or(Some("x")))
	assert.Equal(t, Some("y"), Some("y").Or(Some("x")))
	assert.Equal(t, Sentinel, Unset().String())
}

func TestLoadWorkflow_UnknownJob(t *testing.T) {
	_, err := Load("testdata/integration.yml", "Unit", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no job "Unit"`)
}

func TestParseWorkflow_RejectsUnknownKeys(t *testing.T) {
	wf := []byte(`
jobs:
  it:
    strategy:
      matrix:
        include:
          - MYSQL: 8.0
`)
	_, err := ParseWorkflow(wf, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include[0]")
}

func TestLoadTOML(t *testing.T) {
	m, err := Load("testdata/matrix.toml", "", nil)
	require.NoError(t, err)

	assert.False(t, m.FailFast)
	assert.Equal(t, 2*time.Hour, m.Timeout)
	require.Len(t, m.Include, 2)
	assert.Equal(t, "MySQL 8.0", m.Include[0].Label())

	env, err := m.Resolve(m.Include[1])
	require.NoError(t, err)
	assert.Equal(t, "No", env.Map()["SERVER_USE_M2CRYPTO"])
	assert.Equal(t, "Yes", env.Map()["CLIENT_USE_M2CRYPTO"])
	assert.Equal(t, "5.7", env.Map()["MYSQL_VER"])
}
