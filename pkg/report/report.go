// Package report deals with run results: recording them, judging the overall
// verdict, and rendering them for humans and for files.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/matrixci/matrixci/pkg/envutil"
)

// Status is the terminal state of a job.
type Status string

const (
	// StatusPassed means every install- and script-phase step exited 0.
	StatusPassed Status = "passed"
	// StatusFailed means a script-phase step exited non-zero.
	StatusFailed Status = "failed"
	// StatusErrored means a step before the script phase (before_install,
	// clone, install) failed, so the script phase never ran.
	StatusErrored Status = "errored"
	// StatusCanceled means the job was cut short by cancellation.
	StatusCanceled Status = "canceled"
)

// Duration is a time.Duration that (un)marshals as a duration string, so run
// files stay readable.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	dur, err := time.ParseDuration(str)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// StepResult is the outcome of a single shell step.
type StepResult struct {
	Phase    string    `yaml:"phase"`
	Command  string    `yaml:"command"`
	ExitCode int       `yaml:"exit_code"`
	Error    string    `yaml:"error,omitempty"`
	Started  time.Time `yaml:"started"`
	Duration Duration  `yaml:"duration"`
}

// OK reports whether the step exited cleanly.
func (s StepResult) OK() bool {
	return s.ExitCode == 0 && s.Error == ""
}

// JobResult is the outcome of one job.
type JobResult struct {
	Name         string       `yaml:"name"`
	Env          []string     `yaml:"env,omitempty"`
	AllowFailure bool         `yaml:"allow_failure,omitempty"`
	Status       Status       `yaml:"status"`
	Steps        []StepResult `yaml:"steps,omitempty"`
	Duration     Duration     `yaml:"duration"`
}

// Run is the outcome of a whole pipeline run.
type Run struct {
	Started  time.Time   `yaml:"started"`
	Finished time.Time   `yaml:"finished"`
	Jobs     []JobResult `yaml:"jobs"`
	// OK is the verdict under the allowed-failure policy: true iff every
	// job that is not allowed to fail passed.
	OK bool `yaml:"ok"`
}

// NewJobResult seeds a JobResult for a job about to run.
func NewJobResult(name string, env envutil.Env, allowFailure bool) JobResult {
	return JobResult{
		Name:         name,
		Env:          env.Strings(),
		AllowFailure: allowFailure,
		Status:       StatusPassed,
	}
}

// Evaluate computes and stores the run verdict.
func (r *Run) Evaluate() bool {
	r.OK = true
	for _, job := range r.Jobs {
		if job.AllowFailure {
			continue
		}
		if job.Status != StatusPassed {
			r.OK = false
		}
	}
	return r.OK
}

// WriteYAML writes the run to w, for later consumption by `matrixci report`.
func WriteYAML(w io.Writer, run *Run) error {
	bs, err := yaml.Marshal(run)
	if err != nil {
		return err
	}
	_, err = w.Write(bs)
	return err
}

// ReadYAML parses a run file previously written by WriteYAML.
func ReadYAML(data []byte) (*Run, error) {
	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Summary renders a human-readable verdict table.
func Summary(w io.Writer, run *Run) error {
	table := tabwriter.NewWriter(
		w,   // output
		0,   // minwidth
		1,   // tabwidth
		3,   // padding
		' ', // padchar
		0)   // flags
	if _, err := fmt.Fprintln(table, "JOB\tSTATUS\tDURATION\t"); err != nil {
		return err
	}
	for _, job := range run.Jobs {
		status := string(job.Status)
		if job.AllowFailure && job.Status != StatusPassed {
			status += " (allowed)"
		}
		if _, err := fmt.Fprintf(table, "%s\t%s\t%s\t\n",
			job.Name, status, job.Duration); err != nil {
			return err
		}
	}
	if err := table.Flush(); err != nil {
		return err
	}

	verdict := "passed"
	if !run.OK {
		verdict = "failed"
	}
	_, err := fmt.Fprintf(w, "\nrun %s in %s\n",
		verdict, Duration(run.Finished.Sub(run.Started)))
	return err
}

// FailedJobs returns the names of jobs that did not pass, split by whether
// their failure counts against the run.
func (r *Run) FailedJobs() (fatal, allowed []string) {
	for _, job := range r.Jobs {
		if job.Status == StatusPassed {
			continue
		}
		if job.AllowFailure {
			allowed = append(allowed, job.Name)
		} else {
			fatal = append(fatal, job.Name)
		}
	}
	return fatal, allowed
}

// String renders a one-line digest, mostly for logs.
func (r *Run) String() string {
	fatal, allowed := r.FailedJobs()
	var parts []string
	parts = append(parts, fmt.Sprintf("%d jobs", len(r.Jobs)))
	if len(fatal) > 0 {
		parts = append(parts, fmt.Sprintf("failed: %s", strings.Join(fatal, ", ")))
	}
	if len(allowed) > 0 {
		parts = append(parts, fmt.Sprintf("allowed failures: %s", strings.Join(allowed, ", ")))
	}
	return strings.Join(parts, "; ")
}
