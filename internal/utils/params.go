package utils

import (
	"fmt"
	"strings"
)

// ParseParam splits a "key=value" argument. A bare key is a boolean flag
// and yields the value "true".
// Input examples:
//   - "input=data/holes.txt" → ("input", "data/holes.txt")
//   - "skip_empty"           → ("skip_empty", "true")
//   - "title=Au = gold"      → ("title", "Au = gold")
func ParseParam(arg string) (string, string, error) {
	if !strings.Contains(arg, "=") {
		key := strings.TrimSpace(arg)
		if key == "" {
			return "", "", fmt.Errorf("parameter key cannot be empty")
		}
		return key, "true", nil
	}

	parts := strings.SplitN(arg, "=", 2)
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return "", "", fmt.Errorf("invalid parameter format: %s", arg)
	}
	return key, strings.TrimSpace(parts[1]), nil
}

// ParseParams turns repeated --param arguments into a parameter map.
// Later occurrences of a key win.
func ParseParams(args []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, value, err := ParseParam(arg)
		if err != nil {
			return nil, err
		}
		params[key] = value
	}
	return params, nil
}
