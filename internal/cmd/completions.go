package cmd

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/yte/internal/config"
	"github.com/cameronsjo/yte/internal/values"
)

var (
	templateExtensions = []string{"yaml", "yml"}
	valuesExtensions   = []string{"yaml", "yml", "json", "toml"}
)

// completeTemplateFile completes a single template path.
func completeTemplateFile(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return templateExtensions, cobra.ShellCompDirectiveFilterFileExt
}

// completeTemplateFiles completes any number of template paths.
func completeTemplateFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return templateExtensions, cobra.ShellCompDirectiveFilterFileExt
}

func completeValuesFile(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return valuesExtensions, cobra.ShellCompDirectiveFilterFileExt
}

// completeSetKeys offers the dotted key paths found in the project's
// configured values files.
func completeSetKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	vals, err := values.Sources{Files: cfg.Values}.Load()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var keys []string
	for _, key := range keyPaths(vals, "") {
		if strings.HasPrefix(key, toComplete) {
			keys = append(keys, key+"=")
		}
	}
	sort.Strings(keys)

	return keys, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// keyPaths lists every leaf under m as a dotted path.
func keyPaths(m map[string]any, prefix string) []string {
	var paths []string
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			paths = append(paths, keyPaths(child, path)...)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

// registerCompletions registers all dynamic completions for commands.
func registerCompletions() {
	rootCmd.ValidArgsFunction = completeTemplateFile
	checkCmd.ValidArgsFunction = completeTemplateFiles

	// Re-registration on later Execute calls fails harmlessly.
	_ = rootCmd.RegisterFlagCompletionFunc("values", completeValuesFile)
	_ = rootCmd.RegisterFlagCompletionFunc("secrets", completeValuesFile)
	_ = rootCmd.RegisterFlagCompletionFunc("set", completeSetKeys)
	_ = rootCmd.RegisterFlagCompletionFunc("output", completeTemplateFiles)
}

func init() {
	cobra.OnInitialize(registerCompletions)
}
