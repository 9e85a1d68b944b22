package scenario

import (
	"fmt"
	"strings"
)

// Expand replaces {{name}} placeholders with captured variables.
func Expand(s string, vars map[string]string) (string, error) {
	result := s
	offset := 0
	for {
		start := strings.Index(result[offset:], "{{")
		if start == -1 {
			return result, nil
		}
		start += offset
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression at position %d", start)
		}
		end += start + 2

		name := strings.TrimSpace(result[start+2 : end-2])
		value, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("undefined variable %q", name)
		}
		result = result[:start] + value + result[end:]
		offset = start + len(value)
	}
}
