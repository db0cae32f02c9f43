// Package runit inspects the runit-supervised DIRAC services of a server
// installation.
package runit

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Dir is the runit directory relative to the install root.
const Dir = "ServerInstallDIR/diracos/runit"

// ListScript prints one <System>/<Service> per line for every service that
// has written a log.
const ListScript = `cd ` + Dir + `/; for fn in */*/log/current; do echo "$(dirname "$(dirname "$fn")")"; done`

// ParseServices splits the output of ListScript. The literal glob printed
// when no service has a log is dropped.
func ParseServices(out string) []string {
	var services []string
	for _, field := range strings.Fields(out) {
		if strings.Contains(field, "*") {
			continue
		}
		services = append(services, field)
	}
	sort.Strings(services)
	return services
}

// Filter returns the services matching a shell pattern. Wildcards match
// across the system/service separator.
func Filter(services []string, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	var matched []string
	for _, s := range services {
		if g.Match(s) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// LogPath is the current log of service relative to the install root.
func LogPath(service string) string {
	return path.Join(Dir, service, "log", "current")
}

// TailArgs builds the tail command for the logs of service.
func TailArgs(service string, lines int, follow bool) []string {
	args := []string{"tail", fmt.Sprintf("--lines=%d", lines)}
	if follow {
		args = append(args, "-f")
	}
	return append(args, LogPath(service))
}

// RunsvctrlArgs builds a runsvctrl invocation, run from Dir.
func RunsvctrlArgs(command string, services []string) []string {
	return append([]string{"runsvctrl", command}, services...)
}
