package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/yte/internal/ui"
)

// checkCmd resolves templates without printing them.
var checkCmd = &cobra.Command{
	Use:     "check [file...]",
	Aliases: []string{"lint"},
	Short:   "Check that templates resolve",
	Long: `Resolve each template with the configured values and report whether it
succeeds. Nothing is written to stdout. Reads stdin when no file is given.

The exit code follows the first failure.

Examples:
  yte check deploy.yaml
  yte check -f prod.yaml templates/*.yaml`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{""}
	}

	var firstErr error
	failed := 0
	for _, path := range paths {
		if _, err := sess.render(cmd, path); err != nil {
			ui.Error("%s: %v", displayName(path), err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ui.Success("%s", displayName(path))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d template(s) failed: %w", failed, len(paths), firstErr)
	}
	return nil
}
