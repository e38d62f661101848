// Package config handles project discovery and configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file.
const FileName = ".yte.yaml"

// Environment variables read by Load.
const (
	EnvConfig        = "YTE_CONFIG"
	EnvSecretsFile   = "YTE_SECRETS_FILE"
	EnvNoDefinitions = "YTE_NO_DEFINITIONS"
	EnvNoVariables   = "YTE_NO_VARIABLES"
)

// ErrNotFound is returned by FindRoot when no project file exists above the
// working directory.
var ErrNotFound = errors.New("project root not found (no " + FileName + ")")

// Features toggles the reserved template blocks. Unset means enabled.
type Features struct {
	Definitions *bool `yaml:"definitions"`
	Variables   *bool `yaml:"variables"`
}

// Config holds the yte project configuration.
type Config struct {
	// Path is the loaded config file, empty when none was found.
	Path string `yaml:"-"`

	// Root is the directory relative paths resolve against.
	Root string `yaml:"-"`

	Features Features `yaml:"features"`

	// Values lists values files merged into the root scope in order.
	Values []string `yaml:"values"`

	// Secrets lists SOPS-encrypted values files, merged after Values.
	Secrets []string `yaml:"secrets"`

	// RequiredVersion is a version constraint such as ">= 0.2, < 1.0".
	RequiredVersion string `yaml:"required_version"`
}

// FindRoot searches upward from the current directory to find the project root.
// The project root is identified by the presence of a .yte.yaml file.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, FileName)); err == nil && !info.IsDir() {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNotFound
}

// Load returns the project configuration. YTE_CONFIG names the file
// explicitly; otherwise the nearest .yte.yaml above the working directory is
// used. Without either, defaults apply. Environment overrides are applied
// last.
func Load() (*Config, error) {
	var cfg *Config

	if path := os.Getenv(EnvConfig); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		root, err := FindRoot()
		switch {
		case errors.Is(err, ErrNotFound):
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("get working directory: %w", err)
			}
			cfg = &Config{Root: wd}
		case err != nil:
			return nil, err
		default:
			loaded, err := LoadFile(filepath.Join(root, FileName))
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFile reads one config file. Unknown fields are rejected.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := &Config{Path: abs, Root: filepath.Dir(abs)}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Values = cfg.resolvePaths(cfg.Values)
	cfg.Secrets = cfg.resolvePaths(cfg.Secrets)
	return cfg, nil
}

func (c *Config) resolvePaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(c.Root, p)
		}
	}
	return out
}

func (c *Config) applyEnv() {
	if path := os.Getenv(EnvSecretsFile); path != "" {
		c.Secrets = append(c.Secrets, path)
	}
	if truthy(os.Getenv(EnvNoDefinitions)) {
		c.Features.Definitions = boolPtr(false)
	}
	if truthy(os.Getenv(EnvNoVariables)) {
		c.Features.Variables = boolPtr(false)
	}
}

// DefinitionsEnabled reports whether __definitions__ blocks are allowed.
func (c *Config) DefinitionsEnabled() bool {
	return c.Features.Definitions == nil || *c.Features.Definitions
}

// VariablesEnabled reports whether __variables__ blocks are allowed.
func (c *Config) VariablesEnabled() bool {
	return c.Features.Variables == nil || *c.Features.Variables
}

// CheckVersion verifies current against RequiredVersion. An empty
// constraint always passes.
func (c *Config) CheckVersion(current string) error {
	if c.RequiredVersion == "" {
		return nil
	}

	constraints, err := version.NewConstraint(c.RequiredVersion)
	if err != nil {
		return fmt.Errorf("parse required_version %q: %w", c.RequiredVersion, err)
	}

	v, err := version.NewVersion(current)
	if err != nil {
		return fmt.Errorf("parse version %q: %w", current, err)
	}

	if !constraints.Check(v) {
		return fmt.Errorf("yte %s does not satisfy required_version %q (from %s)", current, c.RequiredVersion, c.Path)
	}
	return nil
}

// truthy treats any non-empty value other than a false boolean as set.
func truthy(s string) bool {
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return true
	}
	return b
}

func boolPtr(b bool) *bool {
	return &b
}
