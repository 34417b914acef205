package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matrixci/matrixci/pkg/cliutil"
	"github.com/matrixci/matrixci/pkg/report"
	"github.com/matrixci/matrixci/pkg/runner"
)

func init() {
	var flags struct {
		File    string
		Workdir string
		Shell   string
		Jobs    int
		Output  string
	}
	cmd := &cobra.Command{
		Use:   "run [flags] [JOB...]",
		Short: "Run the pipeline's jobs",
		Long: "Load the pipeline file, expand its environment matrix in to jobs, and run " +
			"them.  With JOB arguments, only the named jobs run." +
			"\n\n" +
			"The run passes when every job that is not marked as an allowed failure " +
			"passes; failures of allow_failures jobs are reported but do not affect " +
			"the exit status.",
		Args: cliutil.WrapPositionalArgs(cobra.ArbitraryArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, jobs, err := expandPipeline(flags.File, args)
			if err != nil {
				return err
			}

			r := &runner.Runner{
				Pipeline: pipeline,
				Workdir:  flags.Workdir,
				Parallel: flags.Jobs,
				Shell:    flags.Shell,
			}
			run, err := r.Run(cmd.Context(), jobs)
			if err != nil {
				return err
			}

			if flags.Output != "" {
				file, err := os.Create(flags.Output)
				if err != nil {
					return err
				}
				if err := report.WriteYAML(file, run); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
			}

			if err := report.Summary(cmd.OutOrStdout(), run); err != nil {
				return err
			}
			if !run.OK {
				fatal, _ := run.FailedJobs()
				return fmt.Errorf("run failed: %v", fatal)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.File, "file", "f", "",
		"Read the pipeline from `PIPELINE_FILE` (default \".matrixci.yml\")")
	cmd.Flags().StringVar(&flags.Workdir, "workdir", "",
		"Run steps in `DIR` instead of the current directory")
	cmd.Flags().StringVar(&flags.Shell, "shell", "",
		"Feed steps to `SHELL` -c (default \"sh\")")
	cmd.Flags().IntVarP(&flags.Jobs, "jobs", "j", 0,
		"Run up to `N` jobs concurrently; 0 means no limit")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "",
		"Also write the run results to `OUT_RUNFILE.yml`")
	argparser.AddCommand(cmd)
}
