package runit

import (
	"bytes"
	"sync"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	out := "Framework/SystemAdministrator\nDataManagement/FileCatalog\n"
	assert.Equal(t, []string{"DataManagement/FileCatalog", "Framework/SystemAdministrator"}, ParseServices(out))

	assert.Empty(t, ParseServices("*/*\n"))
}

func TestFilter(t *testing.T) {
	services := []string{
		"DataManagement/FileCatalog",
		"Framework/BundleDelivery",
		"Framework/SystemAdministrator",
		"WorkloadManagement/JobManager",
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"*", services},
		{"Framework/*", []string{"Framework/BundleDelivery", "Framework/SystemAdministrator"}},
		{"*Job*", []string{"WorkloadManagement/JobManager"}},
		{"Framework/System?dministrator", []string{"Framework/SystemAdministrator"}},
		{"Accounting/*", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Filter(services, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTailArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"tail", "--lines=10", "-f", "ServerInstallDIR/diracos/runit/Framework/ProxyManager/log/current"},
		TailArgs("Framework/ProxyManager", 10, true))
	assert.Equal(t,
		[]string{"tail", "--lines=5", "ServerInstallDIR/diracos/runit/Framework/ProxyManager/log/current"},
		TailArgs("Framework/ProxyManager", 5, false))
}

func TestRunsvctrlArgs(t *testing.T) {
	assert.Equal(t, []string{"runsvctrl", "t", "Framework/A", "Framework/B"},
		RunsvctrlArgs("t", []string{"Framework/A", "Framework/B"}))
}

func TestLevel(t *testing.T) {
	level, ok := Level("2021-03-04 10:11:12 UTC Framework/ProxyManager ERROR: could not connect")
	require.True(t, ok)
	assert.Equal(t, "ERROR", level)

	_, ok = Level("Traceback (most recent call last):")
	assert.False(t, ok)
}

func TestColorize(t *testing.T) {
	line := "2021-03-04 10:11:12 UTC Framework/ProxyManager WARN: slow"
	assert.Equal(t, text.Colors{text.FgYellow}.Sprint(line), Colorize(line))

	plain := "plain output"
	assert.Equal(t, plain, Colorize(plain))

	unknown := "2021-03-04 10:11:12 UTC Framework/ProxyManager EXCEPT: boom"
	assert.Equal(t, unknown, Colorize(unknown))
}

func TestLineWriter(t *testing.T) {
	var out bytes.Buffer
	var mu sync.Mutex
	w := NewLineWriter(&out, &mu)

	_, err := w.Write([]byte("first li"))
	require.NoError(t, err)
	assert.Empty(t, out.String())

	_, err = w.Write([]byte("ne\n\nsecond"))
	require.NoError(t, err)
	assert.Equal(t, "first line\n", out.String())

	require.NoError(t, w.Flush())
	assert.Equal(t, "first line\nsecond\n", out.String())
}
