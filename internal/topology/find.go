package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var descriptorNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// IsDescriptor reports whether filename is a compose file name.
func IsDescriptor(filename string) bool {
	filename = strings.ToLower(filepath.Base(filename))
	for _, name := range descriptorNames {
		if filename == name {
			return true
		}
	}
	return false
}

// FindDescriptor returns the compose file in dir, preferring the names in
// descriptorNames order.
func FindDescriptor(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	found := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !IsDescriptor(entry.Name()) {
			continue
		}
		found[strings.ToLower(entry.Name())] = entry.Name()
	}

	for _, name := range descriptorNames {
		if actual, ok := found[name]; ok {
			return filepath.Join(dir, actual), nil
		}
	}
	return "", fmt.Errorf("no compose file in %s: %w", dir, os.ErrNotExist)
}
