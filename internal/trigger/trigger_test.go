package trigger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func push(repo string) []byte {
	return []byte(`{"ref": "refs/heads/integration", "repository": {"full_name": "` + repo + `", "name": "DIRAC"}}`)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		event string
		body  []byte
		run   bool
	}{
		{name: "canonical push", event: "push", body: push("DIRACGrid/DIRAC"), run: true},
		{name: "case insensitive", event: "push", body: push("diracgrid/dirac"), run: true},
		{name: "fork push", event: "push", body: push("someone/DIRAC"), run: false},
		{name: "pull request from fork", event: "pull_request", body: []byte(`{"action": "opened"}`), run: true},
		{name: "manual", event: "workflow_dispatch", body: nil, run: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.event, tt.body, "DIRACGrid/DIRAC")
			require.NoError(t, err)
			assert.Equal(t, tt.run, d.Run)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestDecide_InvalidPayload(t *testing.T) {
	_, err := Decide("push", []byte("{"), "DIRACGrid/DIRAC")
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, push("someone/DIRAC"), 0o600))

	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_EVENT_PATH", path)

	d, err := FromEnv("DIRACGrid/DIRAC")
	require.NoError(t, err)
	assert.False(t, d.Run)

	t.Setenv("GITHUB_EVENT_NAME", "")
	d, err = FromEnv("DIRACGrid/DIRAC")
	require.NoError(t, err)
	assert.True(t, d.Run)
}
