// Package sutenv documents the environment variables read by the DIRAC
// installation running inside the test environment. diracci forwards them and
// checks their values; it never interprets them.
package sutenv

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Variable describes one variable read by the system under test.
type Variable struct {
	Name string
	// Values lists the accepted values. Empty means free-form.
	Values []string
	Effect string
	// PerRole variables are set separately for the server and the client.
	PerRole bool
}

// Accepts reports whether value is valid for v.
func (v Variable) Accepts(value string) bool {
	return len(v.Values) == 0 || slices.Contains(v.Values, value)
}

var catalog = []Variable{
	{
		Name:   "DIRAC_DEBUG_DENCODE_CALLSTACK",
		Values: []string{"Yes", "No"},
		Effect: "Print the call stack when DEncode hits a type it cannot serialise.",
	},
	{
		Name:   "DIRAC_DEBUG_STOMP",
		Values: []string{"Yes", "No"},
		Effect: "Enable debug logging of the stomp.py message queue library.",
	},
	{
		Name:   "DIRAC_DEBUG_M2CRYPTO",
		Values: []string{"Yes", "No"},
		Effect: "Dump the M2Crypto SSL handshake and certificate verification details.",
	},
	{
		Name:   "DIRAC_DEPRECATED_FAIL",
		Values: []string{"Yes", "No"},
		Effect: "Raise instead of warning when a deprecated function is called.",
	},
	{
		Name:   "DIRAC_GFAL_GRIDFTP_SESSION_REUSE",
		Values: []string{"true", "false"},
		Effect: "Reuse GridFTP sessions between gfal2 transfers.",
	},
	{
		Name:    "DIRAC_USE_M2CRYPTO",
		Values:  []string{"Yes", "No"},
		Effect:  "Select M2Crypto instead of pyGSI for the security layer.",
		PerRole: true,
	},
	{
		Name:   "DIRAC_VOMSES",
		Effect: "Path of the vomses directory used instead of the default location.",
	},
	{
		Name:   "DIRAC_USE_NEWTHREADPOOL",
		Values: []string{"Yes"},
		Effect: "Use concurrent.futures instead of the legacy ThreadPool. Unset keeps the legacy pool.",
	},
}

// All returns the catalog sorted by name.
func All() []Variable {
	out := slices.Clone(catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the variable called name.
func Lookup(name string) (Variable, bool) {
	for _, v := range catalog {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Validate checks each value of vars against the catalog. Names the catalog
// does not know are accepted unchanged.
func Validate(vars map[string]string) error {
	var problems []string
	for name, value := range vars {
		v, ok := Lookup(name)
		if !ok || v.Accepts(value) {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s=%q (accepted: %s)", name, value, strings.Join(v.Values, ", ")))
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid value for %s", strings.Join(problems, "; "))
	}
	return nil
}
