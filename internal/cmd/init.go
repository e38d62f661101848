package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cameronsjo/yte/internal/config"
	"github.com/cameronsjo/yte/internal/fileutil"
	"github.com/cameronsjo/yte/internal/ui"
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create a starter project config",
	Long: `Initialize a yte project with a starter configuration.

This creates:
  - .yte.yaml      Project config (values files, features, version pin)
  - values.yaml    Values file seeding the root scope

Existing files are left alone. If no directory is specified, the current
directory is used.

Use --yes to skip all interactive prompts (useful for non-TTY environments).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initYes bool

const starterConfig = `# yte project configuration
values:
  - values.yaml
secrets: []
features:
  definitions: true
  variables: true
required_version: ">= %s"
`

const starterValues = `# Values visible to every template as top-level names.
env: dev
`

func init() {
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Skip interactive prompts")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absDir, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	configFile := filepath.Join(absDir, config.FileName)
	if _, err := os.Stat(configFile); err == nil {
		ui.Warning("This directory already has a %s.", config.FileName)
		if !initYes {
			ok, err := promptYesNo(cmd.InOrStdin(), cmd.ErrOrStderr(), "Continue? Existing files are not overwritten.")
			if err != nil {
				return err
			}
			if !ok {
				ui.Info("Aborted.")
				return nil
			}
		}
	}

	if err := os.MkdirAll(absDir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", absDir, err)
	}

	if err := createFileIfNotExists(configFile, fmt.Sprintf(starterConfig, version)); err != nil {
		return fmt.Errorf("create %s: %w", config.FileName, err)
	}
	if err := createFileIfNotExists(filepath.Join(absDir, "values.yaml"), starterValues); err != nil {
		return fmt.Errorf("create values.yaml: %w", err)
	}

	ui.Info("Render a template with: yte template.yaml")
	return nil
}

// promptYesNo asks a question on w and reads the answer from r.
func promptYesNo(r io.Reader, w io.Writer, question string) (bool, error) {
	if f, ok := r.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return false, fmt.Errorf("cannot prompt for input: stdin is not a TTY. Use --yes flag to skip interactive prompts")
	}

	fmt.Fprintf(w, "%s [y/N] ", question)

	response, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// createFileIfNotExists creates a file with the given content if it doesn't exist.
func createFileIfNotExists(filename, content string) error {
	if _, err := os.Stat(filename); err == nil {
		ui.Warning("%s already exists, skipping", filepath.Base(filename))
		return nil
	}

	if err := fileutil.WriteFile(filename, []byte(content), 0644); err != nil {
		return err
	}

	ui.Success("Created %s", filepath.Base(filename))
	return nil
}
