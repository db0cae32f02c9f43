package export

import (
	"fmt"
	"sort"

	"github.com/DIRACGrid/diracci/internal/matrix"
)

// Exporter renders a resolved environment in some format
type Exporter interface {
	// Export converts the environment to the target format
	Export(env matrix.Environment) ([]byte, error)

	// Name returns the exporter name (e.g., "json", "dotenv", "github-env", "shell")
	Name() string
}

var exporters = map[string]func() Exporter{
	"json":       NewJSONExporter,
	"dotenv":     NewDotenvExporter,
	"github-env": NewGitHubEnvExporter,
	"shell":      NewShellExporter,
}

// For returns the exporter called name.
func For(name string) (Exporter, error) {
	newExporter, ok := exporters[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", name, Formats())
	}
	return newExporter(), nil
}

// Formats lists the exporter names.
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
