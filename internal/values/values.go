// Package values loads the data that seeds a template's root scope: values
// files, SOPS-encrypted secrets and --set overrides.
package values

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/getsops/sops/v3/decrypt"
	"gopkg.in/yaml.v3"
)

// Format is a values file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// decryptFile is swapped out in tests.
var decryptFile = decrypt.File

// FormatOf picks the format from the file extension. Unknown extensions are
// read as YAML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// Load reads a values file.
func Load(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values file: %w", err)
	}

	values, err := Parse(content, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("parse values file %s: %w", path, err)
	}
	return values, nil
}

// LoadSecrets decrypts a SOPS-encrypted values file in-process.
func LoadSecrets(path string) (map[string]any, error) {
	format := FormatOf(path)
	if format == FormatTOML {
		return nil, fmt.Errorf("secrets file %s: sops does not support toml", path)
	}

	cleartext, err := decryptFile(path, string(format))
	if err != nil {
		return nil, fmt.Errorf("sops decrypt failed for %s: %w", path, err)
	}

	values, err := Parse(cleartext, format)
	if err != nil {
		return nil, fmt.Errorf("parse decrypted secrets from %s: %w", path, err)
	}
	return values, nil
}

// Parse decodes values content. The top level must be a mapping; empty
// content yields an empty map.
func Parse(content []byte, format Format) (map[string]any, error) {
	if format == FormatTOML {
		var values map[string]any
		if err := toml.Unmarshal(content, &values); err != nil {
			return nil, err
		}
		return normalize(values).(map[string]any), nil
	}

	// JSON is read by the YAML decoder; it is a subset.
	var raw any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return make(map[string]any), nil
	case map[string]any:
		return v, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("top level must be a mapping, got %T", raw)
	}
}

// normalize turns arrays of tables into plain lists.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	default:
		return value
	}
}

// Sources lists everything that contributes to the root scope. Later
// sources win: files, then secrets, then sets.
type Sources struct {
	Files   []string
	Secrets []string
	Sets    []string
}

// Empty reports whether no source is configured.
func (s Sources) Empty() bool {
	return len(s.Files) == 0 && len(s.Secrets) == 0 && len(s.Sets) == 0
}

// Load reads and merges all sources.
func (s Sources) Load() (map[string]any, error) {
	merged := make(map[string]any)

	for _, path := range s.Files {
		values, err := Load(path)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, values)
	}

	for _, path := range s.Secrets {
		values, err := LoadSecrets(path)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, values)
	}

	for _, set := range s.Sets {
		var err error
		merged, err = ApplySet(merged, set)
		if err != nil {
			return nil, err
		}
	}

	return merged, nil
}
