package executor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/process"
)

// runHook executes a single hook of a job or task. The command runs with no
// arguments and with env added to the parent environment.
func runHook(ctx context.Context, rc *runContext, item model.ExecuteItem, description, taskID string, env map[string]string) Outcome {
	if !item.Active() {
		return Continue
	}
	if ctx.Err() != nil {
		return Canceled
	}
	failed := func() Outcome {
		if item.HaltOnError {
			return Halt
		}
		return Failed
	}

	path := item.Command
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		slog.WarnContext(ctx, "hook command not found", "hook", description, "command", item.Command, "halt_on_error", item.HaltOnError)
		rc.log.Error(description + ": command " + item.Command + " not found")
		return failed()
	}

	rc.log.Info("%s started: %s", description, path)
	slog.DebugContext(ctx, "hook started", "hook", description, "command", path)
	stdout, stderr := rc.lines(taskID, false)
	code, err := rc.proc.Run(ctx, process.Command{Path: path, Env: envList(env)}, stdout, stderr)
	switch {
	case errors.Is(err, process.ErrCanceled):
		rc.log.Info("%s finished: %s", description, model.StatusCanceled)
		return Canceled
	case err != nil:
		slog.ErrorContext(ctx, "hook failed to start", "hook", description, "command", path, "error", err)
		rc.log.Error(description + ": " + err.Error())
		rc.log.Info("%s finished: ERROR", description)
		return failed()
	case code != 0:
		slog.WarnContext(ctx, "hook failed", "hook", description, "command", path, "exit_code", code)
		rc.log.Info("%s finished: ERROR (exit code %d)", description, code)
		return failed()
	}
	rc.log.Info("%s finished: DONE", description)
	slog.DebugContext(ctx, "hook finished", "hook", description, "command", path)
	return Continue
}
