package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/CZERTAINLY/Syncer/internal/executor"
	"github.com/CZERTAINLY/Syncer/internal/model"
)

const (
	DefaultPoll       = time.Second
	DefaultStaleAfter = 30 * time.Second
)

// Catalog provides the job definitions to schedule.
type Catalog interface {
	Jobs() []model.Job
	Job(id string) (model.Job, bool)
	Reload(ctx context.Context) error
}

// Runs starts the job runs. It is satisfied by *executor.Registry.
type Runs interface {
	Start(ctx context.Context, job model.Job, dryRun bool) error
	IsRunning(jobID string) bool
}

type Config struct {
	Dir        string
	Poll       time.Duration
	StaleAfter time.Duration
}

// Server fires scheduled jobs until its marker file disappears or the
// context is canceled.
type Server struct {
	cfg     Config
	catalog Catalog
	runs    Runs
	marker  Marker
	reload  Marker

	mx        sync.Mutex
	scheduler gocron.Scheduler
}

func New(cfg Config, catalog Catalog, runs Runs) *Server {
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	return &Server{
		cfg:     cfg,
		catalog: catalog,
		runs:    runs,
		marker:  NewMarker(cfg.Dir, ServerMarker),
		reload:  NewMarker(cfg.Dir, ReloadMarker),
	}
}

// Run acquires the server marker, schedules the jobs and polls the marker
// files. It returns ErrServerRunning if other server owns the marker.
// Runs started by the scheduler get ctx, so canceling it cancels them too.
func (s *Server) Run(ctx context.Context) error {
	if err := s.marker.Acquire(s.cfg.StaleAfter); err != nil {
		return err
	}
	defer func() {
		if err := s.marker.Release(); err != nil {
			slog.ErrorContext(ctx, "releasing server marker", "error", err)
		}
	}()
	// a request left behind by a previous server
	if err := s.reload.Release(); err != nil {
		slog.WarnContext(ctx, "removing reload marker", "error", err)
	}

	if err := s.start(ctx); err != nil {
		return err
	}
	defer s.shutdown(ctx)
	slog.InfoContext(ctx, "server started", "dir", s.cfg.Dir, "scheduled", len(s.Scheduled()))

	ticker := time.NewTicker(s.cfg.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "server stopped", "reason", context.Cause(ctx))
			return nil
		case <-ticker.C:
			if !s.marker.Exists() {
				slog.InfoContext(ctx, "server marker removed: stopping")
				return nil
			}
			if err := s.marker.Touch(); err != nil {
				slog.WarnContext(ctx, "touching server marker", "error", err)
			}
			if s.reload.Exists() {
				if err := s.reloadJobs(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// Scheduled returns the job ids of all scheduled cron entries, sorted.
func (s *Server) Scheduled() []string {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.scheduler == nil {
		return nil
	}
	var ids []string
	for _, j := range s.scheduler.Jobs() {
		ids = append(ids, j.Tags()...)
	}
	slices.Sort(ids)
	return ids
}

func (s *Server) reloadJobs(ctx context.Context) error {
	slog.InfoContext(ctx, "reloading job definitions")
	s.shutdown(ctx)
	if err := s.reload.Release(); err != nil {
		slog.WarnContext(ctx, "removing reload marker", "error", err)
	}
	if err := s.catalog.Reload(ctx); err != nil {
		// keep the previous definitions
		slog.ErrorContext(ctx, "reloading job definitions", "error", err)
	}
	return s.start(ctx)
}

func (s *Server) start(ctx context.Context) error {
	scheduler, err := newScheduler(ctx, s.catalog.Jobs(), func(jobID string) { s.fire(ctx, jobID) })
	if err != nil {
		return err
	}
	scheduler.Start()
	s.mx.Lock()
	s.scheduler = scheduler
	s.mx.Unlock()
	return nil
}

func (s *Server) shutdown(ctx context.Context) {
	s.mx.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mx.Unlock()
	if scheduler == nil {
		return
	}
	if err := scheduler.Shutdown(); err != nil {
		slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
	}
}

// fire starts a scheduled job. The definition is read again, so the
// run uses the latest one.
func (s *Server) fire(ctx context.Context, jobID string) {
	job, ok := s.catalog.Job(jobID)
	if !ok {
		slog.WarnContext(ctx, "scheduled job not found: ignoring", "job_id", jobID)
		return
	}
	if s.runs.IsRunning(jobID) {
		slog.InfoContext(ctx, "scheduled job is locked: skipping", "job_id", jobID)
		return
	}
	err := s.runs.Start(ctx, job, false)
	switch {
	case errors.Is(err, executor.ErrAlreadyRunning):
		slog.InfoContext(ctx, "scheduled job is locked: skipping", "job_id", jobID)
	case err != nil:
		slog.ErrorContext(ctx, "starting scheduled job", "job_id", jobID, "error", err)
	default:
		slog.InfoContext(ctx, "scheduled job started", "job_id", jobID)
	}
}

// newScheduler registers one cron job per expression of every enabled
// schedule. Invalid expressions are logged and skipped.
func newScheduler(ctx context.Context, jobs []model.Job, fire func(jobID string)) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	for _, job := range jobs {
		if !job.Schedule.Enabled {
			continue
		}
		for _, expr := range job.Schedule.Cron {
			fields, err := model.ParseFlexible(expr)
			if err != nil {
				slog.ErrorContext(ctx, "invalid cron expression: ignoring", "job_id", job.ID, "cron", expr, "error", err)
				continue
			}
			_, err = s.NewJob(
				gocron.CronJob(expr, fields == 6),
				gocron.NewTask(fire, job.ID),
				gocron.WithName(job.Name+" "+expr),
				gocron.WithTags(job.ID),
			)
			if err != nil {
				slog.ErrorContext(ctx, "initializing gocron job: ignoring", "job_id", job.ID, "cron", expr, "error", err)
				continue
			}
			slog.DebugContext(ctx, "job scheduled", "job_id", job.ID, "cron", expr)
		}
	}
	return s, nil
}
