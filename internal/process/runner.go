// Package process runs one external command at a time and streams its output.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - environment is the parent environment plus overrides
//   - stdout and stderr are split into lines and passed to callbacks as they arrive
//   - callbacks are never called concurrently
//   - cancellation (context or Cancel) kills the child and its process group
//
// A non-zero exit code is not an error, the caller decides what it means.
package process

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	ErrCanceled   = errors.New("process canceled")
	ErrInProgress = errors.New("process in progress")
)

// ExitCanceled is the exit code reported for a canceled process.
const ExitCanceled = 99

// defaultWaitDelay bounds how long Wait blocks on output pipes
// after the process is gone or killed.
const defaultWaitDelay = 500 * time.Millisecond

type LineFunc func(line string)

type Command struct {
	Path string
	Args []string
	Env  []string // KEY=VALUE overrides of the parent environment
	Dir  string
}

type Runner struct {
	mx        sync.Mutex
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	waitDelay time.Duration
}

func NewRunner() *Runner {
	return &Runner{waitDelay: defaultWaitDelay}
}

// Run starts the command and blocks until it exits or gets canceled.
// It returns the exit code and nil for any process which ran to completion.
// A spawn failure (e.g. not found) returns -1 and the exec error, and
// cancellation returns ExitCanceled and ErrCanceled.
func (r *Runner) Run(ctx context.Context, proto Command, stdout, stderr LineFunc) (int, error) {
	r.mx.Lock()
	if r.cmd != nil {
		r.mx.Unlock()
		return -1, ErrInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, proto.Path, proto.Args...)
	cmd.Env = Environ(proto.Env)
	cmd.Dir = proto.Dir
	cmd.WaitDelay = r.waitDelay
	setProcessGroup(cmd)

	var mu sync.Mutex
	outW := newLineWriter(&mu, stdout)
	errW := newLineWriter(&mu, stderr)
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		r.mx.Unlock()
		if ctx.Err() != nil {
			return ExitCanceled, ErrCanceled
		}
		return -1, err
	}
	r.cmd = cmd
	r.cancel = cancel
	r.mx.Unlock()
	slog.DebugContext(ctx, "process started", "path", proto.Path, "pid", cmd.Process.Pid)

	err := cmd.Wait()
	outW.flush()
	errW.flush()

	r.mx.Lock()
	r.cmd = nil
	r.cancel = nil
	r.mx.Unlock()

	if ctx.Err() != nil {
		slog.DebugContext(ctx, "process canceled", "path", proto.Path)
		return ExitCanceled, ErrCanceled
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		if code < 0 {
			// terminated by a signal
			code = 1
		}
		return code, nil
	case errors.Is(err, exec.ErrWaitDelay):
		slog.WarnContext(ctx, "process output not closed in time", "path", proto.Path)
		return cmd.ProcessState.ExitCode(), nil
	default:
		return -1, err
	}
}

// Cancel kills a running process. It is a no-op if nothing runs,
// so calling it more than once is safe.
func (r *Runner) Cancel() {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Running reports if a process is active.
func (r *Runner) Running() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.cmd != nil
}

// Environ returns the parent environment with overrides applied.
func Environ(overrides []string) []string {
	if len(overrides) == 0 {
		return nil // exec uses the parent environment
	}
	keys := make(map[string]struct{}, len(overrides))
	for _, kv := range overrides {
		k, _, _ := strings.Cut(kv, "=")
		keys[k] = struct{}{}
	}
	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := keys[k]; ok {
			continue
		}
		env = append(env, kv)
	}
	return append(env, overrides...)
}
