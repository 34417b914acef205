package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/matrixci/matrixci/pkg/cliutil"
)

func init() {
	var flags struct {
		File string
	}
	cmd := &cobra.Command{
		Use:   "expand [flags] >JOBS.yml",
		Short: "Dump the expanded jobs as YAML",
		Long: "Expand the pipeline's environment matrix and dump the concrete jobs, " +
			"with their merged environments and allow_failure flags, as YAML on stdout.",
		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, jobs, err := expandPipeline(flags.File, nil)
			if err != nil {
				return err
			}

			type jobView struct {
				Name         string   `yaml:"name"`
				Env          []string `yaml:"env,omitempty"`
				AllowFailure bool     `yaml:"allow_failure,omitempty"`
				Needs        []string `yaml:"needs,omitempty"`
				Script       []string `yaml:"script,omitempty"`
			}
			views := make([]jobView, 0, len(jobs))
			for _, job := range jobs {
				views = append(views, jobView{
					Name:         job.Name,
					Env:          job.Env.Strings(),
					AllowFailure: job.AllowFailure,
					Needs:        job.Needs,
					Script:       job.Script,
				})
			}

			bs, err := yaml.Marshal(views)
			if err != nil {
				return err
			}
			if _, err := os.Stdout.Write(bs); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.File, "file", "f", "",
		"Read the pipeline from `PIPELINE_FILE` (default \".matrixci.yml\")")
	argparserMatrix.AddCommand(cmd)
}
