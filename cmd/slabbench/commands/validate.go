package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/slabtree/internal/bench"
)

// ExitCodeValidationFailure is the process exit code when a workload file
// fails schema validation. Mapped by main from ErrWorkloadInvalid.
const ExitCodeValidationFailure = 2

// ErrWorkloadInvalid is returned when a workload file violates the schema.
var ErrWorkloadInvalid = errors.New("workload validation failed")

// NewValidateCommand creates the workload validation command.
func NewValidateCommand() *cobra.Command {
	var colorize, nocolor bool

	cmd := &cobra.Command{
		Use:   "validate <workload.yaml>",
		Short: "Validate a workload file against the workload schema",
		Long: `Validate a workload YAML file against the embedded JSON schema.

Examples:
  slabbench validate workload.yaml
  slabbench validate --no-color workload.yaml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0], colorize, nocolor, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(path string, colorize, nocolor bool, out io.Writer) error {
	if nocolor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	} else if colorize {
		color.NoColor = false //nolint:reassign // intentional override of library global
	}

	issues, err := bench.ValidateWorkloadFile(path)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		color.New(color.FgGreen).Fprintf(out, "workload is valid (%s)\n", path)

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "workload validation failed (%s)\n", path)
	fmt.Fprintf(out, "\nErrors:\n")

	for _, issue := range issues {
		color.New(color.FgRed).Fprintf(out, "  - %s: %s\n", issue.Field, issue.Description)
	}

	return fmt.Errorf("%w: %d issues", ErrWorkloadInvalid, len(issues))
}
