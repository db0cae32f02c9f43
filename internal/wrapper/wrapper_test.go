package wrapper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DIRACGrid/diracci/internal/engine"
	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	container string
	opts      engine.ExecOptions
	code      int
}

func (r *recordingExecutor) Exec(_ context.Context, container string, opts engine.ExecOptions) (int, error) {
	r.container = container
	r.opts = opts
	return r.code, nil
}

func resolved(t *testing.T, values map[string]string) matrix.Environment {
	t.Helper()
	env, err := matrix.NewStandard().Resolve(matrix.Combination{Values: values})
	require.NoError(t, err)
	return env
}

func TestNew_ForwardsResolvedEnvironment(t *testing.T) {
	env := resolved(t, map[string]string{
		"MYSQL_VER":           "8.0",
		"SERVER_USE_M2CRYPTO": "No",
		"CLIENT_USE_M2CRYPTO": "Yes",
	})

	w, err := New(env, Options{Container: "dirac-testing-host", Registry: "diracgrid"})
	require.NoError(t, err)

	got := w.Env.Map()
	assert.Equal(t, "cc7", got["HOST_OS"])
	assert.Equal(t, "8.0", got["MYSQL_VER"])
	assert.Equal(t, "No", got["SERVER_USE_M2CRYPTO"])
	assert.Equal(t, "Yes", got["CLIENT_USE_M2CRYPTO"])
	assert.Equal(t, "diracgrid", got[RegistryVariable])
	assert.NotContains(t, got, "DIRAC_USE_NEWTHREADPOOL")

	script := w.Script()
	assert.Contains(t, script, "-e MYSQL_VER='8.0'")
	assert.NotContains(t, script, "DIRAC_USE_NEWTHREADPOOL")
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(resolved(t, nil), Options{Container: "dirac-testing-host"})

	var unset *failure.UnsetVariableError
	require.True(t, errors.As(err, &unset))
	assert.Equal(t, []string{RegistryVariable}, unset.Names)
}

func TestNew_PassThrough(t *testing.T) {
	host := map[string]string{
		"DIRAC_DEPRECATED_FAIL": "Yes",
		"DIRAC_VOMSES":          "/etc/vomses",
	}
	lookup := func(name string) (string, bool) {
		v, ok := host[name]
		return v, ok
	}

	w, err := New(resolved(t, nil), Options{
		Container:   "dirac-testing-host",
		Registry:    "diracgrid",
		PassThrough: []string{"DIRAC_DEPRECATED_FAIL", "DIRAC_VOMSES", "DIRAC_DEBUG_STOMP"},
		Lookup:      lookup,
	})
	require.NoError(t, err)

	got := w.Env.Map()
	assert.Equal(t, "Yes", got["DIRAC_DEPRECATED_FAIL"])
	assert.Equal(t, "/etc/vomses", got["DIRAC_VOMSES"])
	assert.NotContains(t, got, "DIRAC_DEBUG_STOMP")

	host["DIRAC_DEPRECATED_FAIL"] = "maybe"
	_, err = New(resolved(t, nil), Options{
		Container:   "dirac-testing-host",
		Registry:    "diracgrid",
		PassThrough: []string{"DIRAC_DEPRECATED_FAIL"},
		Lookup:      lookup,
	})
	assert.ErrorContains(t, err, "DIRAC_DEPRECATED_FAIL")
}

func TestNew_RejectsInvalidNames(t *testing.T) {
	env := matrix.Environment{{Name: "BAD NAME", Value: "x"}}
	_, err := New(env, Options{Container: "h", Registry: "r"})
	assert.ErrorContains(t, err, "invalid variable name")
}

func TestScript(t *testing.T) {
	w := &Wrapper{
		Container: "dirac-testing-host",
		Env: matrix.Environment{
			{Name: "HOST_OS", Value: "cc7"},
			{Name: "NOTE", Value: "it's here"},
		},
	}

	want := strings.Join([]string{
		"#!/usr/bin/env bash",
		"set -euo pipefail",
		"exec docker exec \\",
		"  -e HOST_OS='cc7' \\",
		`  -e NOTE='it'\''s here' \`,
		`  'dirac-testing-host' "$@"`,
		"",
	}, "\n")
	assert.Equal(t, want, w.Script())
}

func TestWriteScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "container-exec")
	w := &Wrapper{Container: "dirac-testing-host"}

	require.NoError(t, w.WriteScript(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, w.Script(), string(content))
}

func TestArgs(t *testing.T) {
	w := ForRole(ServerContainer, "dirac", "", "", true)

	assert.Equal(t, []string{
		"docker", "exec", "-it",
		"-e=TERM=xterm-color",
		"-e=INSTALLROOT=/home/dirac",
		"-e=INSTALLTYPE=server",
		"-u=dirac",
		"-w=/home/dirac",
		"server",
		"bash", "TestCode/DIRAC/tests/CI/run_tests.sh",
	}, w.Args("bash", "TestCode/DIRAC/tests/CI/run_tests.sh"))
}

func TestRun_PropagatesExitStatus(t *testing.T) {
	w := &Wrapper{
		Container:  "dirac-testing-host",
		Env:        matrix.Environment{{Name: "HOST_OS", Value: "cc7"}},
		User:       "dirac",
		WorkingDir: "/repo",
	}
	exec := &recordingExecutor{code: 3}

	code, err := w.Run(context.Background(), exec, []string{"bash", "-c", "exit 3"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "dirac-testing-host", exec.container)
	assert.Equal(t, []string{"HOST_OS=cc7"}, exec.opts.Env)
	assert.Equal(t, "dirac", exec.opts.User)
	assert.Equal(t, "/repo", exec.opts.WorkingDir)

	_, err = w.Run(context.Background(), exec, nil, nil, nil)
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, "'a b'", Quote("a b"))
	assert.Equal(t, `'$HOME'`, Quote("$HOME"))
	assert.Equal(t, `''\'''`, Quote("'"))
}
