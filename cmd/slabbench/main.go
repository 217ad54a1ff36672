// Package main provides the entry point for the slabbench CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/slabtree/cmd/slabbench/commands"
	"github.com/Sumatoshi-tech/slabtree/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "slabbench",
		Short: "Slabbench - workload driver for slab-arena trees",
		Long: `Slabbench drives configurable workloads against slab-arena LLRB trees.

Commands:
  run       Execute a workload file and report results
  validate  Check a workload file against the schema
  init      Write an annotated starter workload`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		if errors.Is(err, commands.ErrWorkloadInvalid) {
			os.Exit(commands.ExitCodeValidationFailure)
		}

		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "slabbench %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
