package values

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseSet splits a "key.path=value" override. The value is read as a YAML
// scalar so numbers and booleans keep their type; anything that does not
// parse stays a string.
func ParseSet(s string) ([]string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return nil, nil, fmt.Errorf("invalid --set %q: expected key=value", s)
	}

	path := strings.Split(strings.TrimSpace(key), ".")
	for _, part := range path {
		if part == "" {
			return nil, nil, fmt.Errorf("invalid --set %q: empty key segment", s)
		}
	}

	if raw == "" {
		return path, "", nil
	}

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return path, raw, nil
	}
	switch value.(type) {
	case map[string]any, []any:
		// Only scalars are typed; structured text is kept literally.
		return path, raw, nil
	}
	return path, value, nil
}

// ApplySet merges one override into base and returns the result.
func ApplySet(base map[string]any, s string) (map[string]any, error) {
	path, value, err := ParseSet(s)
	if err != nil {
		return nil, err
	}

	overlay := map[string]any{path[len(path)-1]: value}
	for i := len(path) - 2; i >= 0; i-- {
		overlay = map[string]any{path[i]: overlay}
	}
	return DeepMerge(base, overlay), nil
}
