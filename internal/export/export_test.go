package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = matrix.Environment{
	{Name: "HOST_OS", Value: "cc7"},
	{Name: "MYSQL_VER", Value: "8.0"},
	{Name: "CLIENT_USE_M2CRYPTO", Value: "Yes"},
}

func TestFor(t *testing.T) {
	for _, name := range Formats() {
		e, err := For(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
	}

	_, err := For("yaml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter().Export(sample)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, sample.Map(), got)
}

func TestDotenvExporter(t *testing.T) {
	out, err := NewDotenvExporter().Export(sample)
	require.NoError(t, err)

	parsed, err := godotenv.Unmarshal(string(out))
	require.NoError(t, err)
	assert.Equal(t, sample.Map(), parsed)
}

func TestShellExporter(t *testing.T) {
	out, err := NewShellExporter().Export(append(sample, matrix.Variable{Name: "NOTE", Value: "it's"}))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Equal(t, []string{
		"export HOST_OS='cc7'",
		"export MYSQL_VER='8.0'",
		"export CLIENT_USE_M2CRYPTO='Yes'",
		`export NOTE='it'\''s'`,
	}, lines)
}

func TestGitHubEnvExporter(t *testing.T) {
	out, err := NewGitHubEnvExporter().Export(sample)
	require.NoError(t, err)
	assert.Equal(t, "HOST_OS=cc7\nMYSQL_VER=8.0\nCLIENT_USE_M2CRYPTO=Yes\n", string(out))
	assert.NotContains(t, string(out), `"`)
}

func TestGitHubEnvExporter_MultiLine(t *testing.T) {
	e := &GitHubEnvExporter{delimiter: func() string { return "EOF_1" }}
	out, err := e.Export(matrix.Environment{
		{Name: "NOTES", Value: "first\nsecond"},
		{Name: "HOST_OS", Value: "cc7"},
	})
	require.NoError(t, err)
	assert.Equal(t, "NOTES<<EOF_1\nfirst\nsecond\nEOF_1\nHOST_OS=cc7\n", string(out))

	_, err = e.Export(matrix.Environment{{Name: "BAD", Value: "a\nEOF_1"}})
	assert.ErrorContains(t, err, "contains the delimiter")
}
