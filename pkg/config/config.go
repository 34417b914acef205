// Package config deals with parsing and validating pipeline files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/matrixci/matrixci/pkg/envutil"
)

// DefaultFilename is the pipeline file that matrixci looks for when the user
// doesn't say otherwise.
const DefaultFilename = ".matrixci.yml"

// Pipeline is the on-disk pipeline definition.
//
// Phases run in the order: before_install, clone, install, script,
// after_success/after_failure, after_script.  A failure during
// before_install, clone, or install marks the job as errored and skips the
// script phase; a failure during script marks the job as failed but the
// remaining script steps still run; failures in the after_* phases never
// affect the job's result.
type Pipeline struct {
	// Env declares the variables that parameterize the pipeline; its
	// matrix axis is what fans the pipeline out in to jobs.
	Env EnvConfig `json:"env,omitempty"`

	// EnvFiles lists dotenv files whose variables are merged in to the
	// global environment, before env.global.
	EnvFiles []string `json:"env_files,omitempty"`

	// Clone lists auxiliary repositories to shallow-clone before the
	// install phase; each clone's absolute path is exported to the job
	// under the clone's Env name.
	Clone []CloneSpec `json:"clone,omitempty"`

	BeforeInstall []string `json:"before_install,omitempty"`
	Install       []string `json:"install,omitempty"`
	Script        []string `json:"script,omitempty"`
	AfterSuccess  []string `json:"after_success,omitempty"`
	AfterFailure  []string `json:"after_failure,omitempty"`
	AfterScript   []string `json:"after_script,omitempty"`

	// Matrix tunes how the env matrix is expanded and judged.
	Matrix MatrixConfig `json:"matrix,omitempty"`

	// Jobs lists explicitly-named jobs, in addition to whatever the env
	// matrix expands to.  Named jobs may depend on each other via Needs.
	Jobs []JobSpec `json:"jobs,omitempty"`

	// Timeout is the wall-clock limit for a single step; zero means no
	// limit.
	Timeout Duration `json:"timeout,omitempty"`
}

// EnvConfig is the "env" section of a pipeline file.
type EnvConfig struct {
	// Global is applied to every job, in order.
	Global []string `json:"global,omitempty"`
	// Matrix fans the pipeline out: each entry becomes one job.  An entry
	// may contain several space-separated KEY=VALUE pairs.
	Matrix []string `json:"matrix,omitempty"`
}

// CloneSpec describes an auxiliary fixture repository.
type CloneSpec struct {
	// Repo is the clone URL, as accepted by `git clone`.
	Repo string `json:"repo"`
	// Dir is the directory (relative to the job's fixture dir) to clone
	// in to; when empty it is derived from the repo URL by git itself.
	Dir string `json:"dir,omitempty"`
	// Depth is the `git clone --depth` value; 0 means the default of 1.
	Depth int `json:"depth,omitempty"`
	// Env names the variable under which the clone's absolute path is
	// exported to all later phases.
	Env string `json:"env"`
}

// MatrixConfig is the "matrix" section of a pipeline file.
type MatrixConfig struct {
	// FastFinish settles the run's verdict as soon as every job that is
	// not allowed to fail has finished, instead of waiting on the
	// allowed-failure stragglers.
	FastFinish bool `json:"fast_finish,omitempty"`
	// AllowFailures marks jobs whose failure must not fail the run.
	AllowFailures []EnvMatch `json:"allow_failures,omitempty"`
	// Include appends extra jobs to the expanded matrix.
	Include []JobSpec `json:"include,omitempty"`
	// Exclude removes matching jobs from the expanded matrix.
	Exclude []EnvMatch `json:"exclude,omitempty"`
}

// EnvMatch selects jobs by their matrix environment.  A match succeeds when
// every KEY=VALUE pair in Env is present in the job's matrix env.
type EnvMatch struct {
	Env string `json:"env"`
}

// JobSpec is an explicitly-declared job (matrix.include or jobs entries).
type JobSpec struct {
	Name string `json:"name,omitempty"`
	Env  string `json:"env,omitempty"`
	// Needs names jobs that must have finished before this one starts.
	Needs []string `json:"needs,omitempty"`
	// AllowFailure marks this job's failure as non-fatal to the run.
	AllowFailure bool `json:"allow_failure,omitempty"`
	// Script overrides the pipeline-level script phase for this job.
	Script []string `json:"script,omitempty"`
}

// Duration is a time.Duration that (un)marshals as a Go duration string.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	dur, err := time.ParseDuration(str)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Parse parses pipeline file contents.  Unknown fields are an error, so a
// typoed key fails loudly instead of being silently ignored.
func Parse(data []byte) (*Pipeline, error) {
	var pipeline Pipeline
	if err := yaml.Unmarshal(data, &pipeline, yaml.DisallowUnknownFields); err != nil {
		return nil, err
	}
	return &pipeline, nil
}

// Load reads and parses the pipeline file at path.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pipeline, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pipeline, nil
}

// Validate checks the pipeline for problems that would only surface midway
// through a run.
func (p *Pipeline) Validate() error {
	if len(p.Script) == 0 {
		// A job-level script can stand in for the pipeline-level one,
		// but then every job needs its own.
		if err := p.validateJobScripts(); err != nil {
			return err
		}
	}
	if len(p.Env.Matrix) == 0 && len(p.Matrix.Include) == 0 && len(p.Jobs) == 0 && len(p.Script) == 0 {
		return fmt.Errorf("pipeline has no jobs: no env.matrix, matrix.include, jobs, or script")
	}
	if _, err := envutil.ParseList(p.Env.Global); err != nil {
		return fmt.Errorf("env.global: %w", err)
	}
	for _, entry := range p.Env.Matrix {
		if _, err := ParseEnvEntry(entry); err != nil {
			return fmt.Errorf("env.matrix: %w", err)
		}
	}
	for _, m := range p.Matrix.AllowFailures {
		if _, err := ParseEnvEntry(m.Env); err != nil {
			return fmt.Errorf("matrix.allow_failures: %w", err)
		}
	}
	for _, m := range p.Matrix.Exclude {
		if _, err := ParseEnvEntry(m.Env); err != nil {
			return fmt.Errorf("matrix.exclude: %w", err)
		}
	}
	for i, clone := range p.Clone {
		if clone.Repo == "" {
			return fmt.Errorf("clone[%d]: missing repo", i)
		}
		if clone.Env == "" {
			return fmt.Errorf("clone[%d] (%s): missing env", i, clone.Repo)
		}
		if clone.Depth < 0 {
			return fmt.Errorf("clone[%d] (%s): negative depth %d", i, clone.Repo, clone.Depth)
		}
	}
	if err := p.validateJobNames(); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) validateJobScripts() error {
	for _, job := range append(append([]JobSpec{}, p.Matrix.Include...), p.Jobs...) {
		if len(job.Script) == 0 {
			return fmt.Errorf("pipeline has no script phase and job %q has no script override",
				job.Name)
		}
	}
	if len(p.Env.Matrix) > 0 {
		return fmt.Errorf("env.matrix jobs need a pipeline-level script phase")
	}
	if len(p.Matrix.Include) == 0 && len(p.Jobs) == 0 {
		return fmt.Errorf("pipeline has no script phase")
	}
	return nil
}

func (p *Pipeline) validateJobNames() error {
	names := make(map[string]bool)
	addName := func(name string) error {
		if name == "" {
			return nil
		}
		if names[name] {
			return fmt.Errorf("duplicate job name %q", name)
		}
		names[name] = true
		return nil
	}
	for _, entry := range p.Env.Matrix {
		if err := addName(entry); err != nil {
			return err
		}
	}
	jobs := append(append([]JobSpec{}, p.Matrix.Include...), p.Jobs...)
	for _, job := range jobs {
		name := job.Name
		if name == "" {
			name = job.Env
		}
		if err := addName(name); err != nil {
			return err
		}
	}
	for _, job := range jobs {
		for _, need := range job.Needs {
			if !names[need] {
				return fmt.Errorf("job %q needs unknown job %q", job.Name, need)
			}
		}
	}
	return nil
}

// ParseEnvEntry parses a matrix entry such as "CONFIG=TEST PYTHON=3.9" in to
// an Env.  Entries are whitespace-separated KEY=VALUE pairs.
func ParseEnvEntry(entry string) (envutil.Env, error) {
	fields, err := splitQuoted(entry)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", entry, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty matrix entry")
	}
	env, err := envutil.ParseList(fields)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", entry, err)
	}
	return env, nil
}

// splitQuoted splits on whitespace, honoring single and double quotes so that
// entries like `MSG="hello world"` stay one field (with the quotes stripped).
func splitQuoted(s string) ([]string, error) {
	var fields []string
	var cur []rune
	var quote rune
	flush := func() {
		if len(cur) > 0 {
			fields = append(fields, string(cur))
			cur = nil
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur = append(cur, r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			cur = append(cur, r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %q quote", quote)
	}
	flush()
	return fields, nil
}
