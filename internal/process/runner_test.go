package process_test

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/CZERTAINLY/Syncer/internal/process"

	"github.com/stretchr/testify/require"
)

func lookSh(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	return sh
}

type lines struct {
	mx  sync.Mutex
	got []string
}

func (l *lines) add(line string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.got = append(l.got, line)
}

func (l *lines) all() []string {
	l.mx.Lock()
	defer l.mx.Unlock()
	return append([]string(nil), l.got...)
}

func TestRunner(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)

	cmd := process.Command{
		Path: sh,
		Args: []string{"-c", "echo stdout; printf 'a\\rb\\r\\nc' ; echo stderr 1>&2; echo $SYNCER_TEST 1>&2; exit 3"},
		Env:  []string{"SYNCER_TEST=golang"},
	}

	var stdout, stderr lines
	runner := process.NewRunner()
	code, err := runner.Run(t.Context(), cmd, stdout.add, stderr.add)
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, []string{"stdout", "a", "b", "c"}, stdout.all())
	require.Equal(t, []string{"stderr", "golang"}, stderr.all())
	require.False(t, runner.Running())
}

func TestRunner_ExecError(t *testing.T) {
	t.Parallel()
	runner := process.NewRunner()
	noCmd := process.Command{
		Path: "does not exist",
	}
	code, err := runner.Run(t.Context(), noCmd, nil, nil)
	require.Error(t, err)
	require.Equal(t, -1, code)
	var execErr *exec.Error
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, noCmd.Path, execErr.Name)
	require.EqualError(t, execErr.Err, "executable file not found in $PATH")
}

func TestRunner_Cancel(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)

	runner := process.NewRunner()
	runner.Cancel() // no-op when idle

	cmd := process.Command{
		Path: sh,
		Args: []string{"-c", "echo started; sleep 5; echo never"},
	}

	started := make(chan struct{})
	var once sync.Once
	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := runner.Run(t.Context(), cmd, func(string) { once.Do(func() { close(started) }) }, nil)
		done <- result{code, err}
	}()

	<-started
	t.Run("in progress", func(t *testing.T) {
		_, err := runner.Run(t.Context(), cmd, nil, nil)
		require.ErrorIs(t, err, process.ErrInProgress)
	})

	now := time.Now()
	runner.Cancel()
	runner.Cancel()
	select {
	case res := <-done:
		require.ErrorIs(t, res.err, process.ErrCanceled)
		require.Equal(t, process.ExitCanceled, res.code)
		require.Less(t, time.Since(now), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled process did not exit in time")
	}
	require.False(t, runner.Running())
}

func TestRunner_ContextCancel(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	runner := process.NewRunner()
	now := time.Now()
	code, err := runner.Run(ctx, process.Command{Path: sh, Args: []string{"-c", "sleep 5"}}, nil, nil)
	require.ErrorIs(t, err, process.ErrCanceled)
	require.Equal(t, process.ExitCanceled, code)
	require.Less(t, time.Since(now), time.Second)
}

func TestEnviron(t *testing.T) {
	t.Setenv("SYNCER_ENV_A", "parent")
	require.Nil(t, process.Environ(nil))

	env := process.Environ([]string{"SYNCER_ENV_A=child", "SYNCER_ENV_B=new"})
	require.Contains(t, env, "SYNCER_ENV_A=child")
	require.Contains(t, env, "SYNCER_ENV_B=new")
	require.NotContains(t, env, "SYNCER_ENV_A=parent")
}
