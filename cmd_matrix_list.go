package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matrixci/matrixci/pkg/cliutil"
)

func init() {
	var flags struct {
		File string
	}
	cmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List the names of the expanded jobs",
		Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, jobs, err := expandPipeline(flags.File, nil)
			if err != nil {
				return err
			}
			for _, job := range jobs {
				marker := ""
				if job.AllowFailure {
					marker = " (allow_failure)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", job.Name, marker)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.File, "file", "f", "",
		"Read the pipeline from `PIPELINE_FILE` (default \".matrixci.yml\")")
	argparserMatrix.AddCommand(cmd)
}
