package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Syncer/internal/joblog"
	"github.com/CZERTAINLY/Syncer/internal/log"
	"github.com/CZERTAINLY/Syncer/internal/model"
)

// Result is the outcome of a job run.
type Result struct {
	RunID       string
	Status      model.Status
	ExitCode    int
	FailedTasks int
}

// JobRunner executes a single run of a job. Use Registry instead of
// calling it directly, the registry takes care of the job lock.
type JobRunner struct {
	cfg    Config
	job    model.Job
	dryRun bool
	proc   ProcessRunner
	runID  string
	onDone func(Result)

	mx      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

func NewJobRunner(cfg Config, job model.Job, dryRun bool) *JobRunner {
	cfg = cfg.withDefaults()
	return &JobRunner{
		cfg:    cfg,
		job:    job.Clone(),
		dryRun: dryRun,
		proc:   cfg.NewProcess(),
		runID:  uuid.NewString(),
	}
}

func (r *JobRunner) RunID() string {
	return r.runID
}

// Stop cancels the run and kills the active child process.
// It is safe to call more than once and before Run.
func (r *JobRunner) Stop() {
	r.mx.Lock()
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mx.Unlock()
	r.proc.Cancel()
}

// Run executes the job and blocks until it ends.
func (r *JobRunner) Run(parent context.Context) Result {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	r.mx.Lock()
	r.cancel = cancel
	if r.stopped {
		cancel()
	}
	r.mx.Unlock()

	ctx = log.ContextAttrs(ctx, slog.Group("job",
		slog.String("id", r.job.ID),
		slog.String("name", r.job.Name),
		slog.String("run_id", r.runID),
		slog.Bool("dry_run", r.dryRun),
	))

	rc := &runContext{
		cfg:     r.cfg,
		job:     r.job,
		runID:   r.runID,
		dryRun:  r.dryRun,
		started: r.cfg.Now(),
		proc:    r.proc,
		log:     joblog.Discard(),
	}
	if r.cfg.LogDir != "" {
		l, err := joblog.Open(r.cfg.LogDir, r.job, rc.started, r.cfg.Now)
		if err != nil {
			slog.ErrorContext(ctx, "opening job log", "error", err)
		} else {
			rc.log = l
		}
	}

	slog.InfoContext(ctx, "job started")
	rc.log.Info("job %s started (run %s)", r.job.Name, r.runID)
	rc.record(ctx, r.job.ID, model.StatusStarted, r.dryRun)
	rc.notify(Event{Kind: EventState, Status: model.StatusStarted})

	res := r.execute(ctx, rc)
	res.RunID = r.runID
	res.ExitCode = res.Status.ExitCode()

	final := context.WithoutCancel(ctx)
	rc.record(final, r.job.ID, res.Status, r.dryRun)
	if !r.dryRun {
		if err := r.cfg.Catalog.RecordJobRun(final, r.job.ID, r.cfg.Now(), res.ExitCode); err != nil {
			slog.ErrorContext(final, "recording job run", "error", err)
		}
	}
	rc.log.Info("job %s finished: %s", r.job.Name, res.Status)
	if err := rc.log.Close(); err != nil {
		slog.ErrorContext(final, "closing job log", "error", err)
	}
	slog.InfoContext(final, "job finished", "status", res.Status, "exit_code", res.ExitCode, "failed_tasks", res.FailedTasks)
	rc.notify(Event{Kind: EventState, Status: res.Status, ExitCode: res.ExitCode})

	if r.onDone != nil {
		r.onDone(res)
	}
	return res
}

func (r *JobRunner) execute(ctx context.Context, rc *runContext) Result {
	hooks := r.job.Hooks
	env := r.job.Env
	canceled := Result{Status: model.StatusCanceled}
	var res Result
	failed := false
	resolved := 0

	switch runHook(ctx, rc, hooks.Before, "job before", "", env) {
	case Canceled:
		return canceled
	case Halt:
		return Result{Status: model.StatusFailed}
	case Failed:
		failed = true
	}

	for _, id := range r.job.Tasks {
		if ctx.Err() != nil {
			return canceled
		}
		task, ok := r.cfg.Catalog.Task(id)
		if !ok {
			slog.WarnContext(ctx, "task not found, skipping", "task_id", id)
			rc.log.Info("task %s not found, skipping", id)
			continue
		}
		resolved++
		tr := runTask(ctx, rc, task)
		if tr.Status == model.StatusCanceled {
			canceled.FailedTasks = res.FailedTasks
			return canceled
		}
		if tr.Failed() {
			res.FailedTasks++
		}
		if !tr.Continue {
			slog.InfoContext(ctx, "task halts the job", "task_id", id)
			break
		}
	}
	if ctx.Err() != nil {
		canceled.FailedTasks = res.FailedTasks
		return canceled
	}

	halted := false
	// only jobs which ran a task pick between after ok and after fail
	if resolved > 0 {
		item, description := hooks.AfterOK, "job after ok"
		if res.FailedTasks > 0 {
			item, description = hooks.AfterFail, "job after fail"
		}
		switch runHook(ctx, rc, item, description, "", env) {
		case Canceled:
			canceled.FailedTasks = res.FailedTasks
			return canceled
		case Halt:
			failed, halted = true, true
		case Failed:
			failed = true
		}
	}
	if !halted {
		switch runHook(ctx, rc, hooks.After, "job after", "", env) {
		case Canceled:
			canceled.FailedTasks = res.FailedTasks
			return canceled
		case Halt, Failed:
			failed = true
		}
	}

	res.Status = model.StatusDone
	if failed || res.FailedTasks > 0 {
		res.Status = model.StatusFailed
	}
	return res
}
