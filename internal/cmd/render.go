package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/k14s/difflib"
	"github.com/spf13/cobra"

	"github.com/cameronsjo/yte/internal/fileutil"
	"github.com/cameronsjo/yte/internal/lock"
	"github.com/cameronsjo/yte/internal/ui"
)

var (
	renderOutput string
	renderDiff   bool
)

func init() {
	rootCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write to file instead of stdout (atomic replace)")
	rootCmd.Flags().BoolVar(&renderDiff, "diff", false, "Show diff against the existing --output file without writing")
}

func runRender(cmd *cobra.Command, args []string) error {
	if renderDiff && renderOutput == "" {
		return fmt.Errorf("--diff requires --output")
	}

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	out, err := sess.render(cmd, path)
	if err != nil {
		return err
	}

	switch {
	case renderDiff:
		return showDiff(cmd, renderOutput, out)
	case renderOutput != "":
		err := lock.WithLock(renderOutput, func() error {
			return fileutil.WriteFile(renderOutput, out, 0644)
		})
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		ui.Success("Wrote %s", renderOutput)
		return nil
	default:
		_, err := cmd.OutOrStdout().Write(out)
		return err
	}
}

// showDiff prints how the rendered output differs from the file at path.
func showDiff(cmd *cobra.Command, path string, rendered []byte) error {
	existing, found, err := fileutil.ReadIfExists(path)
	if err != nil {
		return fmt.Errorf("read existing output: %w", err)
	}
	if !found {
		ui.Warning("%s does not exist yet; showing full output", path)
	}

	if bytes.Equal(existing, rendered) {
		ui.Success("No changes: %s", path)
		return nil
	}

	ui.Diff(cmd.OutOrStdout(), difflib.PPDiff(splitLines(existing), splitLines(rendered)))
	return nil
}

func splitLines(b []byte) []string {
	s := strings.TrimSuffix(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
