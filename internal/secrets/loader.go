// Package secrets resolves sensitive values (API keys, tokens, database
// URLs) from configuration or from files on disk.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source names a secret and where it may come from. File takes precedence
// over Value when both are set.
type Source struct {
	Name  string
	Value string
	File  string
}

// Load resolves the secret described by src. The result is trimmed of
// surrounding whitespace; an empty result is an error naming the secret so
// misconfiguration messages stay actionable.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	value := src.Value
	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		value = string(data)

		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is not configured", name)
	}

	return value, nil
}
