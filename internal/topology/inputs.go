package topology

import (
	"fmt"

	"github.com/joho/godotenv"
)

// BuildInputs assembles the variables available to a descriptor. The env file
// (if any) is read first and each layer then overrides earlier values, so the
// usual call is BuildInputs(envFile, resolvedMatrix, registryOverride).
func BuildInputs(envFile string, layers ...map[string]string) (map[string]string, error) {
	inputs := make(map[string]string)

	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		for k, v := range fileVars {
			inputs[k] = v
		}
	}

	for _, layer := range layers {
		for k, v := range layer {
			inputs[k] = v
		}
	}
	return inputs, nil
}
