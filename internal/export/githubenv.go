package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/google/uuid"
)

// GitHubEnvExporter writes the $GITHUB_ENV file format. Values are stored
// literally: single-line values as NAME=value, multi-line values with a
// heredoc delimiter.
type GitHubEnvExporter struct {
	// delimiter returns a token that must not occur in the value.
	delimiter func() string
}

func (e *GitHubEnvExporter) Name() string {
	return "github-env"
}

func (e *GitHubEnvExporter) Export(env matrix.Environment) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range env {
		if !strings.ContainsAny(v.Value, "\r\n") {
			fmt.Fprintf(&buf, "%s=%s\n", v.Name, v.Value)
			continue
		}
		delim := e.delimiter()
		if strings.Contains(v.Value, delim) {
			return nil, fmt.Errorf("value of %s contains the delimiter %s", v.Name, delim)
		}
		fmt.Fprintf(&buf, "%s<<%s\n%s\n%s\n", v.Name, delim, v.Value, delim)
	}
	return buf.Bytes(), nil
}

func NewGitHubEnvExporter() Exporter {
	return &GitHubEnvExporter{delimiter: func() string { return "ghadelimiter_" + uuid.NewString() }}
}
