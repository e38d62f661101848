package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/yte/internal/config"
	"github.com/cameronsjo/yte/internal/ui"
)

// cmdResult holds what one command execution wrote.
type cmdResult struct {
	Stdout string
	Stderr string
}

// resetFlags restores every flag in fs to its default. Slice flags are
// emptied explicitly because setting their default string appends to them.
func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

// resetRootCmd resets the root command state for test isolation.
// This must be called at the beginning of each test to ensure
// cobra command state doesn't leak between tests.
func resetRootCmd(t *testing.T) {
	t.Helper()
	// Reset args to empty slice (not nil, which would use os.Args)
	rootCmd.SetArgs([]string{})
	rootCmd.SetIn(strings.NewReader(""))
	resetFlags(rootCmd.Flags())
	resetFlags(rootCmd.PersistentFlags())
	for _, cmd := range rootCmd.Commands() {
		cmd.SetContext(context.TODO())
		resetFlags(cmd.Flags())
	}
}

// runCmd executes the root command with stdin and args. Status messages
// printed through ui are captured as stderr.
func runCmd(t *testing.T, stdin string, args ...string) (cmdResult, error) {
	t.Helper()
	resetRootCmd(t)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	prev := ui.Output
	ui.Output = stderr
	t.Cleanup(func() { ui.Output = prev })

	// Important: Set args BEFORE setting output buffers
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	err := rootCmd.Execute()
	return cmdResult{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// executeCmd executes the root command with the given args and returns the
// combined output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	res, err := runCmd(t, "", args...)
	return res.Stdout + res.Stderr, err
}

// isolate runs the test in an empty directory with no yte environment.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{config.EnvConfig, config.EnvSecretsFile, config.EnvNoDefinitions, config.EnvNoVariables} {
		t.Setenv(key, "")
	}
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	t.Chdir(dir)
	return dir
}

// writeFile writes content under dir and returns the full path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func commandNames(cmd *cobra.Command) []string {
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	return names
}
