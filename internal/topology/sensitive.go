package topology

import "strings"

var sensitivePatterns = []string{
	"password", "passwd", "secret", "token", "key", "auth", "credential",
}

// IsSensitive is a heuristic for environment values that should not be
// printed: credential-looking names and URLs with embedded credentials.
func IsSensitive(key, value string) bool {
	key = strings.ToLower(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(key, pattern) {
			return true
		}
	}

	if strings.Contains(value, "://") && strings.Contains(value, "@") {
		return true
	}
	return false
}

// MaskedEnvironment returns the service environment with sensitive values
// replaced by asterisks.
func (s Service) MaskedEnvironment() map[string]string {
	out := make(map[string]string, len(s.Environment))
	for k, v := range s.Environment {
		if IsSensitive(k, v) {
			v = "********"
		}
		out[k] = v
	}
	return out
}
