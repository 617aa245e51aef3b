package executor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/Syncer/internal/log"
	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/process"
)

// TaskResult tells the job loop what happened to a task.
type TaskResult struct {
	Status   model.Status
	ExitCode int
	// Continue is false when the job must not run its next task.
	Continue bool
}

func (r TaskResult) Failed() bool {
	return r.Status == model.StatusFailed
}

// Args returns the tool arguments of a task.
func Args(task model.Task, dryRun bool) []string {
	args := make([]string, 0, len(task.Options)+len(task.Excludes)+3)
	if dryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, task.Options...)
	for _, e := range task.Excludes {
		args = append(args, "--exclude="+e)
	}
	return append(args, sourcePath(task.Source, task.NoAdditionalDir), destinationPath(task.Destination))
}

const sep = string(filepath.Separator)

// sourcePath makes the tool copy either the directory itself (no trailing
// separator) or only its content (trailing separator).
func sourcePath(src string, contentOnly bool) string {
	trimmed := strings.TrimRight(src, sep)
	if trimmed == "" && src != "" {
		return sep
	}
	if contentOnly {
		return trimmed + sep
	}
	return trimmed
}

func destinationPath(dst string) string {
	trimmed := strings.TrimRight(dst, sep)
	if trimmed == "" && dst != "" {
		return sep
	}
	return trimmed
}

// runTask walks a task through its hooks and the tool invocation.
func runTask(ctx context.Context, rc *runContext, task model.Task) TaskResult {
	dryRun := rc.dryRun || task.DryRun
	ctx = log.ContextAttrs(ctx, slog.Group("task", slog.String("id", task.ID), slog.String("name", task.Name)))

	slog.InfoContext(ctx, "task started")
	rc.log.Info("task %s started", task.Name)
	rc.record(ctx, task.ID, model.StatusStarted, dryRun)
	rc.notify(Event{Kind: EventState, TaskID: task.ID, Status: model.StatusStarted})

	status, code := executeTask(ctx, rc, task, dryRun)
	res := TaskResult{
		Status:   status,
		ExitCode: code,
		Continue: status == model.StatusDone || (status == model.StatusFailed && !task.JobHaltOnError),
	}

	final := context.WithoutCancel(ctx)
	rc.record(final, task.ID, status, dryRun)
	if !dryRun {
		if err := rc.cfg.Catalog.RecordTaskRun(final, task.ID, rc.cfg.Now(), code); err != nil {
			slog.ErrorContext(final, "recording task run", "error", err)
		}
	}
	rc.log.Info("task %s finished: %s", task.Name, status)
	slog.InfoContext(final, "task finished", "status", status, "exit_code", code)
	rc.notify(Event{Kind: EventState, TaskID: task.ID, Status: status, ExitCode: code})
	return res
}

func executeTask(ctx context.Context, rc *runContext, task model.Task, dryRun bool) (model.Status, int) {
	env := model.MergeEnv(rc.job.Env, task.Env)
	hooks := task.Hooks
	failed := false

	switch runHook(ctx, rc, hooks.Before, "task before", task.ID, env) {
	case Canceled:
		return model.StatusCanceled, model.ExitCanceled
	case Halt:
		return model.StatusFailed, model.ExitFailed
	case Failed:
		failed = true
	}
	if ctx.Err() != nil {
		return model.StatusCanceled, model.ExitCanceled
	}

	cmd := process.Command{Path: rc.cfg.ToolPath, Args: Args(task, dryRun), Env: envList(env)}
	rc.log.Info("%s %s", cmd.Path, strings.Join(cmd.Args, " "))
	stdout, stderr := rc.lines(task.ID, true)
	code, err := rc.proc.Run(ctx, cmd, stdout, stderr)
	synced := err == nil && code == 0
	switch {
	case errors.Is(err, process.ErrCanceled):
		return model.StatusCanceled, model.ExitCanceled
	case err != nil:
		slog.ErrorContext(ctx, "starting tool", "path", cmd.Path, "error", err)
		rc.log.Error("starting " + cmd.Path + ": " + err.Error())
		code = model.ExitFailed
		failed = true
	case code != 0:
		slog.WarnContext(ctx, "tool failed", "path", cmd.Path, "exit_code", code)
		failed = true
	}

	item, description := hooks.AfterOK, "task after ok"
	if !synced {
		item, description = hooks.AfterFail, "task after fail"
	}
	halted := false
	switch runHook(ctx, rc, item, description, task.ID, env) {
	case Canceled:
		return model.StatusCanceled, model.ExitCanceled
	case Halt:
		failed, halted = true, true
	case Failed:
		failed = true
	}

	if !halted {
		switch runHook(ctx, rc, hooks.After, "task after", task.ID, env) {
		case Canceled:
			return model.StatusCanceled, model.ExitCanceled
		case Halt, Failed:
			failed = true
		}
	}

	if !failed {
		return model.StatusDone, code
	}
	if code == 0 {
		code = model.ExitFailed
	}
	return model.StatusFailed, code
}
