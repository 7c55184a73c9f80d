package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/actocrawler/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Long: `Init writes a commented sample configuration file.

Without a path the file is created in the XDG config directory
(~/.config/actocrawl/config.yaml on Linux), where "actocrawl crawl" looks for
it after .actocrawl.yaml in the current directory.

Examples:
  # Create the user configuration
  actocrawl init

  # Create a project-local configuration
  actocrawl init .actocrawl.yaml

  # Overwrite an existing file
  actocrawl init -f`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInitCmd,
	}

	cmd.Flags().BoolP("force", "f", false, "Overwrite existing configuration file")

	return cmd
}

// defaultInitPath is the file written when init receives no path.
func defaultInitPath() string {
	return filepath.Join(config.XDGConfigDir(), config.XDGConfigFile)
}

func runInitCmd(cmd *cobra.Command, args []string) error {
	outputPath := defaultInitPath()
	if len(args) == 1 {
		outputPath = args[0]
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if _, err := os.Stat(outputPath); err == nil {
		if !force {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
		if err := os.Remove(outputPath); err != nil {
			return fmt.Errorf("failed to remove existing configuration file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check configuration file: %w", err)
	}

	if err := config.WriteConfigFile(outputPath, config.SampleFile()); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Crawl depth and total request budget")
	fmt.Fprintln(out, "  - Allowed or denied domains")
	fmt.Fprintln(out, "  - Per-domain concurrency, delay and rate limits")

	return nil
}
