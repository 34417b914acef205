package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matrixci/matrixci/pkg/cliutil"
	"github.com/matrixci/matrixci/pkg/report"
)

func init() {
	cmd := &cobra.Command{
		Use:   "report [flags] IN_RUNFILE.yml",
		Short: "Render the summary of a saved run",
		Long: "Re-render the human-readable summary table from a run file previously " +
			"written by `matrixci run --output`.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			run, err := report.ReadYAML(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return report.Summary(cmd.OutOrStdout(), run)
		},
	}
	argparser.AddCommand(cmd)
}
