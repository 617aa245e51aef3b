package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/Syncer/internal/joblog"
	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/process"
	"github.com/CZERTAINLY/Syncer/internal/progress"
)

// runContext is the state of a single job run shared by its hooks and tasks.
// It is owned by the run goroutine.
type runContext struct {
	cfg     Config
	job     model.Job
	runID   string
	dryRun  bool
	started time.Time
	proc    ProcessRunner
	log     *joblog.Log
}

func (rc *runContext) notify(e Event) {
	e.JobID = rc.job.ID
	e.RunID = rc.runID
	e.DryRun = rc.dryRun
	rc.cfg.Observer.Notify(e)
}

// lines returns the output callbacks for a child process. With parseProgress
// the progress lines of the tool become progress events instead of log lines.
func (rc *runContext) lines(taskID string, parseProgress bool) (process.LineFunc, process.LineFunc) {
	stdout := func(line string) {
		if parseProgress {
			if p, ok := progress.Parse(line); ok {
				rc.notify(Event{Kind: EventProgress, TaskID: taskID, Progress: p})
				return
			}
		}
		rc.log.Output(line)
		rc.notify(Event{Kind: EventLog, TaskID: taskID, Stream: Stdout, Line: line})
	}
	stderr := func(line string) {
		rc.log.Error(line)
		rc.notify(Event{Kind: EventLog, TaskID: taskID, Stream: Stderr, Line: line})
	}
	return stdout, stderr
}

// record appends a history line. Dry runs are recorded only when asked for.
// History problems never fail a run.
func (rc *runContext) record(ctx context.Context, entityID string, status model.Status, dryRun bool) {
	if rc.cfg.History == nil || (dryRun && !rc.cfg.RecordDryRuns) {
		return
	}
	rec := model.RunRecord{
		EntityID: entityID,
		Time:     rc.cfg.Now(),
		Status:   status,
		DryRun:   dryRun,
	}
	if err := rc.cfg.History.Append(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "appending history", "entity_id", entityID, "status", status, "error", err)
	}
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	ret := make([]string, 0, len(env))
	for k, v := range env {
		ret = append(ret, k+"="+v)
	}
	return ret
}
