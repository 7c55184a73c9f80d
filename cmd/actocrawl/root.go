package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for actocrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actocrawl",
		Short: "Concurrent web crawler with per-domain queues",
		Long: `actocrawl crawls websites from seed URLs.

Every fetched page is parsed for links which are scheduled up to the
configured depth and total request budget. Hosts can be allowed or denied
with regular expressions, and each group of hosts gets its own queue with a
concurrency limit, a politeness delay and an optional rate limit.

Onion services are reachable through an external SOCKS5 proxy (--socks5)
or an embedded Tor daemon (--tor).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
