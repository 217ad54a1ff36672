package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/slabtree/internal/bench"
)

// NewInitCommand creates the starter workload command.
func NewInitCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated starter workload",
		Long:  "Write a commented starter workload file that loads, validates, and runs as-is.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := bench.WriteStarterWorkload(outputPath)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "starter workload written to %s\n", outputPath)
			fmt.Fprintf(cmd.OutOrStdout(), "run it with: slabbench run %s\n", outputPath)

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "workload.yaml", "Output path for the starter workload")

	return cmd
}
