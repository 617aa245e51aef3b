package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/CZERTAINLY/Syncer/internal/model"
)

var ErrAlreadyRunning = errors.New("job already running")

type run struct {
	runner *JobRunner
	done   chan struct{}
	result Result
}

// Registry owns the active runs keyed by job id. A job runs at most once
// at a time.
type Registry struct {
	cfg  Config
	mx   sync.Mutex
	runs map[string]*run
	wg   sync.WaitGroup
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:  cfg.withDefaults(),
		runs: make(map[string]*run),
	}
}

// Start runs the job on its own goroutine. The run is canceled with ctx.
func (r *Registry) Start(ctx context.Context, job model.Job, dryRun bool) error {
	_, err := r.start(ctx, job, dryRun)
	return err
}

// Run starts the job and waits for it to end.
func (r *Registry) Run(ctx context.Context, job model.Job, dryRun bool) (Result, error) {
	h, err := r.start(ctx, job, dryRun)
	if err != nil {
		return Result{}, err
	}
	<-h.done
	return h.result, nil
}

func (r *Registry) start(ctx context.Context, job model.Job, dryRun bool) (*run, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.runs[job.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, job.ID)
	}

	h := &run{
		runner: NewJobRunner(r.cfg, job, dryRun),
		done:   make(chan struct{}),
	}
	h.runner.onDone = func(res Result) {
		r.mx.Lock()
		delete(r.runs, job.ID)
		r.mx.Unlock()
		h.result = res
		close(h.done)
	}
	r.runs[job.ID] = h

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		h.runner.Run(ctx)
	}()
	slog.DebugContext(ctx, "job run registered", "job_id", job.ID, "run_id", h.runner.RunID())
	return h, nil
}

// Stop cancels the run of a job. Stopping an idle job does nothing.
func (r *Registry) Stop(jobID string) {
	r.mx.Lock()
	h, ok := r.runs[jobID]
	r.mx.Unlock()
	if ok {
		h.runner.Stop()
	}
}

// StopAll cancels every active run.
func (r *Registry) StopAll() {
	r.mx.Lock()
	runs := make([]*run, 0, len(r.runs))
	for _, h := range r.runs {
		runs = append(runs, h)
	}
	r.mx.Unlock()
	for _, h := range runs {
		h.runner.Stop()
	}
}

func (r *Registry) IsRunning(jobID string) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	_, ok := r.runs[jobID]
	return ok
}

// Running returns the sorted ids of running jobs.
func (r *Registry) Running() []string {
	r.mx.Lock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	r.mx.Unlock()
	slices.Sort(ids)
	return ids
}

// WithLocks sets the Locked flag of jobs with an active run.
func (r *Registry) WithLocks(jobs []model.Job) []model.Job {
	r.mx.Lock()
	defer r.mx.Unlock()
	ret := make([]model.Job, len(jobs))
	for i, j := range jobs {
		_, j.Locked = r.runs[j.ID]
		ret[i] = j
	}
	return ret
}

// Wait blocks until every run ends or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
