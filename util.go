package main

import (
	"github.com/matrixci/matrixci/pkg/config"
	"github.com/matrixci/matrixci/pkg/matrix"
)

func openPipeline(filename string) (*config.Pipeline, error) {
	if filename == "" {
		filename = config.DefaultFilename
	}
	return config.Load(filename)
}

// expandPipeline is the common load-validate-expand front half of the
// commands that deal with concrete jobs.
func expandPipeline(filename string, only []string) (*config.Pipeline, []matrix.Job, error) {
	pipeline, err := openPipeline(filename)
	if err != nil {
		return nil, nil, err
	}
	if err := pipeline.Validate(); err != nil {
		return nil, nil, err
	}
	jobs, err := matrix.Expand(pipeline)
	if err != nil {
		return nil, nil, err
	}
	jobs, err = matrix.Filter(jobs, only)
	if err != nil {
		return nil, nil, err
	}
	return pipeline, jobs, nil
}
