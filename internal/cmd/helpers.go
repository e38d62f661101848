package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cameronsjo/yte/internal/config"
	"github.com/cameronsjo/yte/internal/document"
	"github.com/cameronsjo/yte/internal/engine"
	ystar "github.com/cameronsjo/yte/internal/starlark"
	"github.com/cameronsjo/yte/internal/values"
)

var errNoInput = errors.New("no input: pass a template file or pipe YAML on stdin")

// session is the configuration, values and logger shared by every template
// rendered in one command run.
type session struct {
	cfg    *config.Config
	vars   map[string]any
	logger *slog.Logger
}

// newSession applies config file, environment and flags, in increasing
// precedence, and loads the root scope values.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckVersion(version); err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr())
	if cfg.Path != "" {
		logger.Debug("config loaded", "path", cfg.Path)
	}

	src := values.Sources{
		Files:   append(slices.Clone(cfg.Values), valuesFiles...),
		Secrets: append(slices.Clone(cfg.Secrets), secretsFiles...),
		Sets:    setValues,
	}
	vars, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	if !src.Empty() {
		logger.Debug("values loaded", "files", len(src.Files), "secrets", len(src.Secrets), "sets", len(src.Sets), "keys", len(vars))
	}

	return &session{cfg: cfg, vars: vars, logger: logger}, nil
}

func (s *session) features() engine.Features {
	return engine.Features{
		Definitions: s.cfg.DefinitionsEnabled() && !noDefinitions,
		Variables:   s.cfg.VariablesEnabled() && !noVariables,
	}
}

// engine builds a fresh engine. load() in definitions resolves against
// baseDir.
func (s *session) engine(baseDir string) *engine.Engine {
	ev := ystar.NewEvaluator(ystar.WithBaseDir(baseDir), ystar.WithLogger(s.logger))
	eng := engine.New(ev, engine.WithFeatures(s.features()), engine.WithLogger(s.logger))

	features := eng.Features()
	s.logger.Debug("engine ready", "base_dir", baseDir, "definitions", features.Definitions, "variables", features.Variables)
	return eng
}

// render resolves one template. An empty path or "-" reads stdin.
func (s *session) render(cmd *cobra.Command, path string) ([]byte, error) {
	data, baseDir, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("rendering", "input", displayName(path), "bytes", len(data))
	return document.RenderBytes(data, s.engine(baseDir), s.vars)
}

func readInput(cmd *cobra.Command, path string) ([]byte, string, error) {
	if path == "" || path == "-" {
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, "", errNoInput
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("get working directory: %w", err)
		}
		return data, wd, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read template: %w", err)
	}
	return data, filepath.Dir(path), nil
}

func displayName(path string) string {
	if path == "" || path == "-" {
		return "<stdin>"
	}
	return path
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	kind, ok := engine.KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case engine.KindFormat:
		return 3
	case engine.KindStructural:
		return 4
	case engine.KindDefinition:
		return 5
	case engine.KindEvaluation:
		return 6
	default:
		return 1
	}
}
