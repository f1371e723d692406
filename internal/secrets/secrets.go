package secrets

import (
	"os"
	"strings"
)

// Get retrieves a secret value, supporting both direct env vars and the
// Docker-secrets file pattern: if KEY_FILE is set, the secret is read from
// that path and trimmed; otherwise KEY itself is used.
func Get(envKey, defaultValue string) (string, error) {
	if filePath := os.Getenv(envKey + "_FILE"); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	if value := os.Getenv(envKey); value != "" {
		return value, nil
	}

	return defaultValue, nil
}

// GetOptionalSecret retrieves a secret with a default value, never fails
func GetOptionalSecret(envKey, defaultValue string) string {
	value, err := Get(envKey, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}
