package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/Syncer/internal/executor"
	"github.com/CZERTAINLY/Syncer/internal/history"
	"github.com/CZERTAINLY/Syncer/internal/log"
	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/server"
	"github.com/CZERTAINLY/Syncer/internal/store"
)

// openCatalog loads the definitions file, printing schema errors one by one.
func openCatalog(ctx context.Context) (*store.Catalog, error) {
	catalog, err := store.Open(ctx, store.NewFile(cfg.Definitions))
	if err != nil {
		for _, d := range store.ErrDetails(err) {
			slog.ErrorContext(ctx, "invalid definitions", d.Attr("detail"))
		}
		return nil, fmt.Errorf("loading definitions %s: %w", cfg.Definitions, err)
	}
	return catalog, nil
}

func newRegistry(catalog *store.Catalog, observer executor.Observer) *executor.Registry {
	return executor.NewRegistry(executor.Config{
		ToolPath:      cfg.Tool.Path,
		Catalog:       catalog,
		History:       history.New(cfg.History.Path),
		LogDir:        cfg.Logs.Dir,
		RecordDryRuns: cfg.History.RecordDryRuns,
		Observer:      observer,
	})
}

func doList(ctx context.Context, w io.Writer) error {
	catalog, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	if server.Running(cfg.Server.Dir) {
		fmt.Fprintf(w, "server: running in %s\n\n", cfg.Server.Dir)
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTASKS\tLAST RUN\tEXIT\tNEXT RUN\tID")
	now := time.Now()
	for _, job := range catalog.Jobs() {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			job.Name,
			len(job.Tasks),
			lastRun(job.LastRun),
			exitCodeString(job.LastRunExitCode),
			nextRun(job, now),
			job.ID,
		)
	}
	return tw.Flush()
}

func lastRun(ts *model.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Format(time.DateTime)
}

func exitCodeString(code *int) string {
	if code == nil {
		return "-"
	}
	return fmt.Sprint(*code)
}

func nextRun(job model.Job, now time.Time) string {
	if !job.Schedule.Enabled {
		return "-"
	}
	var next time.Time
	for _, expr := range job.Schedule.Cron {
		t, err := model.NextRun(expr, now)
		if err != nil {
			continue
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	if next.IsZero() {
		return "-"
	}
	return next.Format(time.DateTime)
}

// doStart runs the named jobs concurrently and returns the highest exit code.
func doStart(ctx context.Context, names []string, dryRun bool) error {
	catalog, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	jobs := make([]model.Job, 0, len(names))
	for _, name := range names {
		job, err := catalog.JobByName(name)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	registry := newRegistry(catalog, newPrinter(os.Stdout, os.Stderr, len(jobs) > 1))
	results := make([]executor.Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := registry.Run(gctx, job, dryRun)
			if err != nil {
				return fmt.Errorf("starting job %s: %w", job.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		registry.StopAll()
		return errors.Join(err, registry.Wait(context.WithoutCancel(ctx)))
	}

	code := 0
	for i, res := range results {
		slog.InfoContext(ctx, "job finished", "job_name", jobs[i].Name, "status", res.Status, "exit_code", res.ExitCode)
		code = max(code, res.ExitCode)
	}
	if code != 0 {
		return exitCode(code)
	}
	return nil
}

func doServer(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("syncer",
		slog.String("cmd", "server"),
		slog.Int("pid", os.Getpid()),
	))
	dir := cfg.Server.Dir

	switch {
	case flagReload:
		if !server.Running(dir) {
			return fmt.Errorf("no server runs in %s", dir)
		}
		return server.RequestReload(dir)
	case flagStop:
		if !server.Running(dir) {
			return fmt.Errorf("no server runs in %s", dir)
		}
		return server.RequestStop(dir)
	case flagWatch:
		lifecycle := server.NewLifecycle(dir, cfg.Server.Poll)
		lifecycle.OnStart(func() { fmt.Println("server started") })
		lifecycle.OnStop(func() { fmt.Println("server stopped") })
		return lifecycle.Run(ctx)
	}

	catalog, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	registry := newRegistry(catalog, nil)
	srv := server.New(server.Config{
		Dir:        dir,
		Poll:       cfg.Server.Poll,
		StaleAfter: cfg.Server.StaleAfter,
	}, catalog, registry)

	err = srv.Run(ctx)
	// runs started by the server are canceled with ctx, otherwise they end on their own
	if running := registry.Running(); len(running) > 0 {
		slog.InfoContext(ctx, "waiting for running jobs", "job_ids", running)
	}
	return errors.Join(err, registry.Wait(context.WithoutCancel(ctx)))
}

// printer prints the output of manually started runs.
type printer struct {
	mx     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	prefix bool
}

func newPrinter(stdout, stderr io.Writer, prefix bool) *printer {
	return &printer{stdout: stdout, stderr: stderr, prefix: prefix}
}

func (p *printer) Notify(e executor.Event) {
	var w io.Writer
	var line string
	switch e.Kind {
	case executor.EventLog:
		w, line = p.stdout, e.Line
		if e.Stream == executor.Stderr {
			w = p.stderr
		}
	case executor.EventProgress:
		pr := e.Progress
		w, line = p.stdout, fmt.Sprintf("%s %3.0f%% %s %s", pr.Size, pr.Percentage*100, pr.Speed, pr.ETA)
	case executor.EventState:
		w = p.stdout
		entity := "job"
		if e.TaskID != "" {
			entity = "task " + e.TaskID
		}
		line = fmt.Sprintf("%s %s", entity, e.Status)
		if e.DryRun {
			line += " (dry-run)"
		}
	default:
		return
	}
	if p.prefix {
		line = e.JobID + ": " + line
	}

	p.mx.Lock()
	defer p.mx.Unlock()
	fmt.Fprintln(w, strings.TrimRight(line, "\n"))
}
