package scenario

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lookup evaluates a dot path such as $.items[0].id against decoded JSON.
func lookup(doc any, path string) (any, bool, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, false, fmt.Errorf("path must start with $: %q", path)
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	current := doc
	if rest == "" {
		return current, true, nil
	}

	for _, seg := range strings.Split(rest, ".") {
		field, index, hasIndex := strings.Cut(seg, "[")
		if field != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			if current, ok = m[field]; !ok {
				return nil, false, nil
			}
		}
		if !hasIndex {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSuffix(index, "]"))
		if err != nil {
			return nil, false, fmt.Errorf("invalid array index in %q: %w", seg, err)
		}
		arr, ok := current.([]any)
		if !ok || i < 0 || i >= len(arr) {
			return nil, false, nil
		}
		current = arr[i]
	}
	return current, true, nil
}

// stringify renders a decoded JSON value the way assertions compare it.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		data, _ := json.Marshal(x)
		return string(data)
	}
}
