package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matrixci/matrixci/pkg/cliutil"
	"github.com/matrixci/matrixci/pkg/matrix"
)

func init() {
	var flags struct {
		File string
	}
	cmd := &cobra.Command{
		Use:   "validate [flags]",
		Short: "Check the pipeline file for problems",
		Long: "Parse the pipeline file strictly (unknown keys are errors), validate it, " +
			"and dry-run the matrix expansion, without running anything.",
		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := openPipeline(flags.File)
			if err != nil {
				return err
			}
			if err := pipeline.Validate(); err != nil {
				return err
			}
			jobs, err := matrix.Expand(pipeline)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d jobs\n", len(jobs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.File, "file", "f", "",
		"Read the pipeline from `PIPELINE_FILE` (default \".matrixci.yml\")")
	argparser.AddCommand(cmd)
}
