package wrapper

import (
	"github.com/DIRACGrid/diracci/internal/matrix"
)

// Local development targets: the role containers started by the topology.
const (
	ServerContainer = "server"
	ClientContainer = "client"
)

// DefaultInstallRoot is the home of the dirac user in the role containers.
const DefaultInstallRoot = "/home/dirac"

// ForRole returns a wrapper into the server or client container running as
// user with the variables the DIRAC install scripts expect.
func ForRole(role, user, installRoot, workdir string, interactive bool) *Wrapper {
	if installRoot == "" {
		installRoot = DefaultInstallRoot
	}
	if workdir == "" {
		workdir = installRoot
	}
	return &Wrapper{
		Container: role,
		Env: matrix.Environment{
			{Name: "TERM", Value: "xterm-color"},
			{Name: "INSTALLROOT", Value: installRoot},
			{Name: "INSTALLTYPE", Value: role},
		},
		User:        user,
		WorkingDir:  workdir,
		Interactive: interactive,
	}
}
