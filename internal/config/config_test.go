package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalSymlinks resolves symlinks for path comparison (macOS /var -> /private/var).
func evalSymlinks(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}

// chdir changes into dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	originalWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(originalWd) })
	require.NoError(t, os.Chdir(dir))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvConfig, EnvSecretsFile, EnvNoDefinitions, EnvNoVariables} {
		t.Setenv(name, "")
	}
}

func TestFindRoot_FromSubdirectory(t *testing.T) {
	tmpDir := evalSymlinks(t, t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte("values: []\n"), 0644))

	subDir := filepath.Join(tmpDir, "sub", "deep")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	chdir(t, subDir)

	root, err := FindRoot()
	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindRoot_DirectoryNamedLikeConfigIgnored(t *testing.T) {
	tmpDir := evalSymlinks(t, t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, FileName), 0755))
	chdir(t, tmpDir)

	_, err := FindRoot()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindRoot_NotFound(t *testing.T) {
	chdir(t, evalSymlinks(t, t.TempDir()))

	_, err := FindRoot()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	tmpDir := evalSymlinks(t, t.TempDir())
	chdir(t, tmpDir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, tmpDir, cfg.Root)
	assert.Empty(t, cfg.Path)
	assert.True(t, cfg.DefinitionsEnabled())
	assert.True(t, cfg.VariablesEnabled())
	assert.Empty(t, cfg.Values)
}

func TestLoad_DiscoveredFile(t *testing.T) {
	clearEnv(t)
	tmpDir := evalSymlinks(t, t.TempDir())
	content := `features:
  definitions: false
values:
  - values/base.yaml
  - /etc/yte/global.yaml
secrets:
  - secrets.sops.yaml
required_version: ">= 0.1"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte(content), 0644))

	subDir := filepath.Join(tmpDir, "templates")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	chdir(t, subDir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, FileName), cfg.Path)
	assert.Equal(t, tmpDir, cfg.Root)
	assert.False(t, cfg.DefinitionsEnabled())
	assert.True(t, cfg.VariablesEnabled())
	assert.Equal(t, []string{filepath.Join(tmpDir, "values", "base.yaml"), "/etc/yte/global.yaml"}, cfg.Values)
	assert.Equal(t, []string{filepath.Join(tmpDir, "secrets.sops.yaml")}, cfg.Secrets)
	assert.Equal(t, ">= 0.1", cfg.RequiredVersion)
}

func TestLoad_ExplicitPath(t *testing.T) {
	clearEnv(t)
	tmpDir := evalSymlinks(t, t.TempDir())
	path := filepath.Join(tmpDir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("values: [a.yaml]\n"), 0644))

	chdir(t, evalSymlinks(t, t.TempDir()))
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, []string{filepath.Join(tmpDir, "a.yaml")}, cfg.Values)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	tmpDir := evalSymlinks(t, t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte("features:\n  variables: true\n"), 0644))
	chdir(t, tmpDir)

	t.Setenv(EnvSecretsFile, "/run/secrets/app.sops.yaml")
	t.Setenv(EnvNoDefinitions, "1")
	t.Setenv(EnvNoVariables, "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.DefinitionsEnabled())
	assert.False(t, cfg.VariablesEnabled())
	assert.Equal(t, []string{"/run/secrets/app.sops.yaml"}, cfg.Secrets)
}

func TestLoad_EnvFalseKeepsFeature(t *testing.T) {
	clearEnv(t)
	chdir(t, evalSymlinks(t, t.TempDir()))
	t.Setenv(EnvNoDefinitions, "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DefinitionsEnabled())
}

func TestLoadFile_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	unknown := filepath.Join(tmpDir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("valuez: []\n"), 0644))
	_, err := LoadFile(unknown)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("values: [\n"), 0644))
	_, err = LoadFile(invalid)
	assert.Error(t, err)
}

func TestLoadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, nil, 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.DefinitionsEnabled())
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name     string
		required string
		current  string
		wantErr  string
	}{
		{name: "no constraint", required: "", current: "0.1.0"},
		{name: "satisfied", required: ">= 0.1, < 1.0", current: "0.3.2"},
		{name: "pessimistic", required: "~> 0.2", current: "0.9.0"},
		{name: "too old", required: ">= 1.0", current: "0.3.2", wantErr: "does not satisfy"},
		{name: "bad constraint", required: "latest", current: "0.3.2", wantErr: "parse required_version"},
		{name: "bad version", required: ">= 1.0", current: "dev", wantErr: "parse version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{RequiredVersion: tt.required, Path: FileName}
			err := cfg.CheckVersion(tt.current)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(""))
	assert.False(t, truthy("0"))
	assert.False(t, truthy("false"))
	assert.True(t, truthy("1"))
	assert.True(t, truthy("TRUE"))
	assert.True(t, truthy("yes"))
}
