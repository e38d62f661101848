package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/yte/internal/ui"
	"github.com/cameronsjo/yte/internal/update"
)

const changelogLines = 10

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade", "selfupdate"},
	Short:   "Update yte to the latest version",
	Long: `Update yte to the latest version from GitHub releases.

This command will:
1. Check for a newer version on GitHub
2. Download the appropriate binary for your platform
3. Replace the current binary with the new version

Examples:
  yte update           # Update to latest version
  yte update --check   # Check for updates without installing`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var checkOnly bool

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for updates, don't install")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ui.Info("Current version: %s (%s)", version, update.PlatformInfo())
	ui.Info("Checking for updates...")

	if checkOnly {
		return checkForUpdate(cmd)
	}
	return performUpdate(cmd)
}

func checkForUpdate(cmd *cobra.Command) error {
	release, available, err := update.CheckForUpdate(cmd.Context(), version)
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}

	if !available {
		ui.Success("You're running the latest version!")
		return nil
	}

	ui.Success("New version available: %s (released %s)", release.Version, release.PublishedAt)
	ui.Info("To update, run: yte update")
	printChangelog(cmd.ErrOrStderr(), release.Changelog)
	return nil
}

func performUpdate(cmd *cobra.Command) error {
	release, err := update.Update(cmd.Context(), version)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	if release == nil {
		ui.Success("You're already running the latest version!")
		return nil
	}

	ui.Success("Successfully updated to version %s!", release.Version)
	printChangelog(cmd.ErrOrStderr(), release.Changelog)
	return nil
}

// printChangelog prints the first lines of a release's notes.
func printChangelog(w io.Writer, changelog string) {
	if changelog == "" {
		return
	}

	ui.Yellow.Fprintln(w, "What's new:")
	lines := strings.Split(strings.TrimRight(changelog, "\n"), "\n")
	shown := min(len(lines), changelogLines)
	for _, line := range lines[:shown] {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if len(lines) > shown {
		fmt.Fprintf(w, "  ... (%d more lines)\n", len(lines)-shown)
	}
}
