// Package matrix deals with expanding a pipeline's environment matrix in to
// the concrete list of jobs to run.
package matrix

import (
	"fmt"

	"github.com/matrixci/matrixci/pkg/config"
	"github.com/matrixci/matrixci/pkg/envutil"
)

// Job is one concrete, runnable instantiation of the pipeline.
type Job struct {
	// Name identifies the job in logs and reports.  For plain matrix jobs
	// it is the matrix entry itself (e.g. "CONFIG=TEST").
	Name string `json:"name"`
	// Index is the job's position in expansion order.
	Index int `json:"index"`
	// Env is the job's pipeline-level environment: env_files, then
	// env.global, then the matrix entry, later entries shadowing earlier
	// ones.
	Env envutil.Env `json:"env,omitempty"`
	// MatrixEnv is just the matrix-entry portion of Env; allow_failures
	// and exclude entries match against it.
	MatrixEnv envutil.Env `json:"matrix_env,omitempty"`
	// AllowFailure means this job's failure does not fail the run.
	AllowFailure bool `json:"allow_failure,omitempty"`
	// Needs names jobs that must finish before this one starts.
	Needs []string `json:"needs,omitempty"`
	// Script, when non-nil, overrides the pipeline-level script phase.
	Script []string `json:"script,omitempty"`
}

// Expand turns the pipeline definition in to its concrete jobs:
//
//   - one job per env.matrix entry, minus matrix.exclude matches,
//   - plus matrix.include entries,
//   - plus jobs entries.
//
// Expansion order is file order, and is deterministic.  An empty matrix with
// a script phase yields a single job carrying only the global environment.
func Expand(cfg *config.Pipeline) ([]Job, error) {
	global, err := baseEnv(cfg)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	add := func(job Job) {
		job.Index = len(jobs)
		jobs = append(jobs, job)
	}

	for _, entry := range cfg.Env.Matrix {
		matrixEnv, err := config.ParseEnvEntry(entry)
		if err != nil {
			return nil, err
		}
		excluded, err := matchesAny(matrixEnv, cfg.Matrix.Exclude)
		if err != nil {
			return nil, fmt.Errorf("matrix.exclude: %w", err)
		}
		if excluded {
			continue
		}
		allowFailure, err := matchesAny(matrixEnv, cfg.Matrix.AllowFailures)
		if err != nil {
			return nil, fmt.Errorf("matrix.allow_failures: %w", err)
		}
		add(Job{
			Name:         entry,
			Env:          global.Merge(matrixEnv),
			MatrixEnv:    matrixEnv,
			AllowFailure: allowFailure,
		})
	}

	for _, spec := range cfg.Matrix.Include {
		job, err := jobFromSpec(cfg, global, spec)
		if err != nil {
			return nil, err
		}
		add(job)
	}
	for _, spec := range cfg.Jobs {
		job, err := jobFromSpec(cfg, global, spec)
		if err != nil {
			return nil, err
		}
		add(job)
	}

	if len(jobs) == 0 {
		if len(cfg.Script) == 0 {
			return nil, fmt.Errorf("pipeline expands to no jobs")
		}
		add(Job{
			Name: "default",
			Env:  global,
		})
	}
	return jobs, nil
}

func baseEnv(cfg *config.Pipeline) (envutil.Env, error) {
	fileEnv, err := envutil.LoadFiles(cfg.EnvFiles...)
	if err != nil {
		return nil, err
	}
	globalEnv, err := envutil.ParseList(cfg.Env.Global)
	if err != nil {
		return nil, fmt.Errorf("env.global: %w", err)
	}
	return fileEnv.Merge(globalEnv), nil
}

func jobFromSpec(cfg *config.Pipeline, global envutil.Env, spec config.JobSpec) (Job, error) {
	var matrixEnv envutil.Env
	if spec.Env != "" {
		var err error
		matrixEnv, err = config.ParseEnvEntry(spec.Env)
		if err != nil {
			return Job{}, err
		}
	}
	name := spec.Name
	if name == "" {
		name = spec.Env
	}
	if name == "" {
		return Job{}, fmt.Errorf("job with neither name nor env")
	}
	allowFailure := spec.AllowFailure
	if !allowFailure {
		var err error
		allowFailure, err = matchesAny(matrixEnv, cfg.Matrix.AllowFailures)
		if err != nil {
			return Job{}, fmt.Errorf("matrix.allow_failures: %w", err)
		}
	}
	return Job{
		Name:         name,
		Env:          global.Merge(matrixEnv),
		MatrixEnv:    matrixEnv,
		AllowFailure: allowFailure,
		Needs:        spec.Needs,
		Script:       spec.Script,
	}, nil
}

// matchesAny reports whether the job env matches at least one of the
// matchers.  A matcher matches when every one of its KEY=VALUE pairs is
// present in the job's matrix env.  A matcher that does not parse is an
// error rather than a silent non-match.
func matchesAny(matrixEnv envutil.Env, matchers []config.EnvMatch) (bool, error) {
	for _, m := range matchers {
		want, err := config.ParseEnvEntry(m.Env)
		if err != nil {
			return false, err
		}
		if containsAll(matrixEnv, want) {
			return true, nil
		}
	}
	return false, nil
}

func containsAll(env, want envutil.Env) bool {
	for _, v := range want {
		got, ok := env.Lookup(v.Key)
		if !ok || got != v.Value {
			return false
		}
	}
	return true
}

// Filter returns the jobs whose names are in keep, preserving expansion
// order.  An unknown name is an error.
func Filter(jobs []Job, keep []string) ([]Job, error) {
	if len(keep) == 0 {
		return jobs, nil
	}
	byName := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		byName[job.Name] = true
	}
	want := make(map[string]bool, len(keep))
	for _, name := range keep {
		if !byName[name] {
			return nil, fmt.Errorf("no such job: %q", name)
		}
		want[name] = true
	}
	var ret []Job
	for _, job := range jobs {
		if want[job.Name] {
			ret = append(ret, job)
		}
	}
	return ret, nil
}
