// Package cmd provides the CLI commands for yte.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/yte/internal/ui"
)

const version = "0.1.0"

var (
	valuesFiles   []string
	secretsFiles  []string
	setValues     []string
	noDefinitions bool
	noVariables   bool
	verbose       bool
)

// rootCmd renders a template; it is also the parent of every subcommand.
var rootCmd = &cobra.Command{
	Use:   "yte [file]",
	Short: "YAML template engine",
	Long: `yte - YAML template engine

Renders YAML documents that contain expressions, loops and conditionals
into plain YAML. Reads the file argument, or stdin when none is given, and
writes the result to stdout.

TEMPLATE SYNTAX
  key: ?expr               Value is the result of a Starlark expression
  ?expr: value             Key is computed
  ?for x in xs:            Resolve the body once per item and merge
  ?if cond: / ?elif cond: / ?else:
                           Keep the first branch whose condition holds
  __definitions__:         Starlark statements (functions, constants)
  __variables__:           Named values visible to the rest of the mapping

Iterations and branches that return mappings are merged key by key;
lists are concatenated.

VALUES
  -f, --values <file>      YAML, JSON or TOML file seeding the root scope
  -s, --secrets <file>     SOPS-encrypted values file
  --set key.path=value     Override a single value

Project defaults are read from the nearest .yte.yaml (or $YTE_CONFIG).

EXIT CODES
  1  usage, I/O or configuration error
  3  input is not valid YAML
  4  structural error (misplaced elif/else, inconsistent merge)
  5  definitions failed
  6  expression failed`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRender,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&valuesFiles, "values", "f", nil, "Values file merged into the root scope (repeatable)")
	flags.StringArrayVarP(&secretsFiles, "secrets", "s", nil, "SOPS-encrypted values file (repeatable)")
	flags.StringArrayVar(&setValues, "set", nil, "Set a value, e.g. --set image.tag=1.2 (repeatable)")
	flags.BoolVar(&noDefinitions, "no-definitions", false, "Reject __definitions__ blocks")
	flags.BoolVar(&noVariables, "no-variables", false, "Reject __variables__ blocks")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log resolution steps to stderr")

	// Version template
	rootCmd.SetVersionTemplate("yte version {{.Version}}\n")
}
