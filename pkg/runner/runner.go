// Package runner executes expanded jobs: each job's phases run in order as
// shell steps in subprocesses, and the run's verdict is judged under the
// allowed-failure policy.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/datawire/dlib/dcontext"
	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"
	"golang.org/x/sync/errgroup"

	"github.com/matrixci/matrixci/pkg/config"
	"github.com/matrixci/matrixci/pkg/gitutil"
	"github.com/matrixci/matrixci/pkg/matrix"
	"github.com/matrixci/matrixci/pkg/report"
	"github.com/matrixci/matrixci/pkg/reproducible"
	"github.com/matrixci/matrixci/pkg/schedule"
)

// Runner executes jobs for a single pipeline.
type Runner struct {
	// Pipeline supplies the phase step lists and run policy.
	Pipeline *config.Pipeline
	// Workdir is the directory steps run in; empty means the current
	// directory.  Per-job scratch space (fixture clones) lives under
	// <Workdir>/.matrixci/<job>/.
	Workdir string
	// Parallel caps how many jobs of a wave run concurrently; <= 0 means
	// no cap.
	Parallel int
	// Shell is the interpreter steps are fed to via its -c flag; empty
	// means "sh".
	Shell string
}

func (r *Runner) shell() string {
	if r.Shell == "" {
		return "sh"
	}
	return r.Shell
}

// Run executes the jobs wave by wave and returns the recorded run.  Job
// failures land in the result, not in the returned error; the error is
// reserved for problems with the run itself (bad dependency graph, unusable
// workdir).
//
// A job whose needs did not all pass is not started; it is recorded as
// canceled.
func (r *Runner) Run(ctx context.Context, jobs []matrix.Job) (*report.Run, error) {
	waves, err := schedule.Order(jobs)
	if err != nil {
		return nil, err
	}
	if r.Workdir != "" {
		if err := os.MkdirAll(r.Workdir, 0777); err != nil {
			return nil, err
		}
	}

	slots := make(map[string]int, len(jobs))
	for i, job := range jobs {
		slots[job.Name] = i
	}
	results := make([]report.JobResult, len(jobs))
	done := make(map[string]report.Status, len(jobs))

	requiredLeft := 0
	for _, job := range jobs {
		if !job.AllowFailure {
			requiredLeft++
		}
	}

	var mu sync.Mutex
	record := func(job matrix.Job, res report.JobResult) {
		mu.Lock()
		defer mu.Unlock()
		results[slots[job.Name]] = res
		done[job.Name] = res.Status
		if job.AllowFailure {
			return
		}
		requiredLeft--
		if requiredLeft == 0 && r.Pipeline.Matrix.FastFinish {
			verdict := "passed"
			for _, other := range results {
				if !other.AllowFailure && other.Status != "" && other.Status != report.StatusPassed {
					verdict = "failed"
				}
			}
			dlog.Infof(ctx, "fast_finish: all required jobs finished, run %s", verdict)
		}
	}
	needsMet := func(job matrix.Job) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, need := range job.Needs {
			if done[need] != report.StatusPassed {
				return false
			}
		}
		return true
	}

	started := time.Now()
	for _, wave := range waves {
		grp := new(errgroup.Group)
		if r.Parallel > 0 {
			grp.SetLimit(r.Parallel)
		}
		for _, job := range wave {
			job := job
			grp.Go(func() error {
				if !needsMet(job) {
					dlog.Warnf(ctx, "job %q: skipped, a needed job did not pass", job.Name)
					res := report.NewJobResult(job.Name, job.Env, job.AllowFailure)
					res.Status = report.StatusCanceled
					record(job, res)
					return nil
				}
				record(job, r.runJob(ctx, job))
				return nil
			})
		}
		// The group never carries an error; Wait is just the barrier
		// between waves.
		_ = grp.Wait()
	}
	finished := time.Now()

	run := &report.Run{
		Started:  started,
		Finished: finished,
		Jobs:     results,
	}
	if _, ok := os.LookupEnv("SOURCE_DATE_EPOCH"); ok {
		run.Started = reproducible.Now()
		run.Finished = reproducible.Now()
	}
	run.Evaluate()
	return run, nil
}

// runJob runs one job's phases in order.
func (r *Runner) runJob(ctx context.Context, job matrix.Job) report.JobResult {
	ctx = dlog.WithField(ctx, "job", job.Name)
	res := report.NewJobResult(job.Name, job.Env, job.AllowFailure)
	jobStarted := time.Now()

	env := append(os.Environ(), job.Env.Strings()...)

	setup := r.runPhase(ctx, &res, env, "before_install", r.Pipeline.BeforeInstall, false)
	if setup {
		env, setup = r.clonePhase(ctx, &res, job, env)
	}
	if setup {
		setup = r.runPhase(ctx, &res, env, "install", r.Pipeline.Install, false)
	}

	switch {
	case !setup:
		res.Status = report.StatusErrored
	default:
		script := r.Pipeline.Script
		if job.Script != nil {
			script = job.Script
		}
		// Script steps keep running after a failure; the job just
		// ends up failed.
		if !r.runPhase(ctx, &res, env, "script", script, true) {
			res.Status = report.StatusFailed
		}
	}

	// The after_* phases still run during soft shutdown, and their
	// failures don't change the job's result.
	hardCtx := dcontext.HardContext(ctx)
	if res.Status == report.StatusPassed {
		r.runPhase(hardCtx, &res, env, "after_success", r.Pipeline.AfterSuccess, true)
	} else {
		r.runPhase(hardCtx, &res, env, "after_failure", r.Pipeline.AfterFailure, true)
	}
	r.runPhase(hardCtx, &res, env, "after_script", r.Pipeline.AfterScript, true)

	if ctx.Err() != nil && res.Status != report.StatusPassed {
		res.Status = report.StatusCanceled
	}
	res.Duration = report.Duration(time.Since(jobStarted))
	dlog.Infof(ctx, "job finished: %s", res.Status)
	return res
}

// runPhase runs each step of a phase, recording a StepResult per step.  It
// returns false if any step failed.  With keepGoing, later steps still run
// after a failure; without it, the phase stops at the first failure.
func (r *Runner) runPhase(
	ctx context.Context,
	res *report.JobResult,
	env []string,
	phase string,
	steps []string,
	keepGoing bool,
) bool {
	ok := true
	for _, step := range steps {
		stepRes := r.runStep(ctx, env, phase, step)
		res.Steps = append(res.Steps, stepRes)
		if !stepRes.OK() {
			ok = false
			if !keepGoing {
				return false
			}
		}
	}
	return ok
}

func (r *Runner) runStep(ctx context.Context, env []string, phase, command string) (stepRes report.StepResult) {
	stepRes = report.StepResult{
		Phase:   phase,
		Command: command,
		Started: time.Now(),
	}
	defer func() {
		stepRes.Duration = report.Duration(time.Since(stepRes.Started))
	}()

	if timeout := time.Duration(r.Pipeline.Timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dlog.Infof(ctx, "%s: $ %s", phase, command)
	cmd := dexec.CommandContext(ctx, r.shell(), "-c", command)
	cmd.Dir = r.Workdir
	cmd.Env = env
	err := cmd.Run()
	if err == nil {
		return stepRes
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stepRes.ExitCode = exitErr.ExitCode()
	} else {
		stepRes.ExitCode = -1
		stepRes.Error = err.Error()
	}
	dlog.Errorf(ctx, "%s: command failed: %v", phase, err)
	return stepRes
}

// clonePhase fetches the pipeline's fixture repositories and extends the job
// environment with their paths.
func (r *Runner) clonePhase(
	ctx context.Context,
	res *report.JobResult,
	job matrix.Job,
	env []string,
) ([]string, bool) {
	for _, spec := range r.Pipeline.Clone {
		dir := spec.Dir
		if dir == "" {
			dir = repoDirName(spec.Repo)
		}
		dest := filepath.Join(r.Workdir, ".matrixci", safeName(job.Name), "fixtures", dir)

		stepRes := report.StepResult{
			Phase:   "clone",
			Command: fmt.Sprintf("git clone --depth %d -- %s %s", cloneDepth(spec), spec.Repo, dest),
			Started: time.Now(),
		}
		err := gitutil.ShallowClone(ctx, spec.Repo, dest, spec.Depth)
		stepRes.Duration = report.Duration(time.Since(stepRes.Started))
		if err != nil {
			stepRes.ExitCode = -1
			stepRes.Error = err.Error()
			res.Steps = append(res.Steps, stepRes)
			dlog.Errorf(ctx, "clone: %v", err)
			return env, false
		}
		res.Steps = append(res.Steps, stepRes)

		abs, err := filepath.Abs(dest)
		if err != nil {
			abs = dest
		}
		env = append(env, spec.Env+"="+abs)
		dlog.Infof(ctx, "clone: %s=%s", spec.Env, abs)
	}
	return env, true
}

func cloneDepth(spec config.CloneSpec) int {
	if spec.Depth == 0 {
		return 1
	}
	return spec.Depth
}

func repoDirName(repo string) string {
	base := strings.TrimSuffix(filepath.Base(strings.TrimSuffix(repo, "/")), ".git")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "fixture"
	}
	return base
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
