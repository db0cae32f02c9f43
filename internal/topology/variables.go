package topology

import (
	"fmt"
	"sort"

	"github.com/DIRACGrid/diracci/internal/failure"
	"github.com/compose-spec/compose-go/v2/template"
	"gopkg.in/yaml.v3"
)

// ReferencedVariables returns the sorted names of every variable interpolated
// anywhere in the descriptor.
func ReferencedVariables(content []byte) ([]string, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	vars := template.ExtractVariables(raw, nil)
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CheckInputs fails when the descriptor references a variable that inputs
// does not supply. Inline defaults in the descriptor do not count: version
// and registry variables must always come from the caller.
func CheckInputs(filename string, content []byte, inputs map[string]string) error {
	names, err := ReferencedVariables(content)
	if err != nil {
		return err
	}

	var missing []string
	for _, name := range names {
		if v, ok := inputs[name]; !ok || v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return failure.NewUnsetVariableError("descriptor "+filename, missing...)
	}
	return nil
}
