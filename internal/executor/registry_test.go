package executor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/CZERTAINLY/Syncer/internal/model"

	"github.com/stretchr/testify/require"
)

// slowFixture uses a tool which touches started and sleeps.
func slowFixture(t *testing.T) (*fixture, *Registry) {
	t.Helper()
	f := newFixture(t, task("t1", 0))
	f.cfg.ToolPath = script(t, "slow-rsync", "touch '"+f.path("started")+"'\nsleep 30")
	return f, NewRegistry(f.cfg)
}

func waitStarted(t *testing.T, f *fixture) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(f.path("started"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func waitAll(t *testing.T, reg *Registry, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), timeout)
	defer cancel()
	require.NoError(t, reg.Wait(ctx))
}

func TestRegistryRun(t *testing.T) {
	f := newFixture(t, task("t1", 0))
	reg := NewRegistry(f.cfg)

	res, err := reg.Run(t.Context(), model.Job{ID: "j1", Tasks: []string{"t1"}}, false)
	require.NoError(t, err)
	require.Equal(t, model.StatusDone, res.Status)
	require.False(t, reg.IsRunning("j1"))
	require.Empty(t, reg.Running())
	waitAll(t, reg, time.Second)
}

func TestRegistryDoubleStart(t *testing.T) {
	f, reg := slowFixture(t)
	job := model.Job{ID: "j1", Tasks: []string{"t1"}}

	require.NoError(t, reg.Start(t.Context(), job, false))
	err := reg.Start(t.Context(), job, false)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = reg.Run(t.Context(), job, false)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.True(t, reg.IsRunning("j1"))
	require.Equal(t, []string{"j1"}, reg.Running())
	jobs := reg.WithLocks([]model.Job{job, {ID: "j2"}})
	require.True(t, jobs[0].Locked)
	require.False(t, jobs[1].Locked)

	waitStarted(t, f)
	reg.Stop("j1")
	waitAll(t, reg, 5*time.Second)
	require.Equal(t, []string{"j1 STARTED", "t1 STARTED", "t1 CANCELED", "j1 CANCELED"}, f.history.lines())
}

func TestRegistryStopMidSync(t *testing.T) {
	f, reg := slowFixture(t)
	job := model.Job{ID: "j1", Tasks: []string{"t1"}}
	job.Hooks.After = hook(touchScript(t, "after.sh", f.path("after"), 0), false)

	require.NoError(t, reg.Start(t.Context(), job, false))
	waitStarted(t, f)

	start := time.Now()
	reg.Stop("j1")
	reg.Stop("j1")
	waitAll(t, reg, time.Second)
	require.Less(t, time.Since(start), time.Second)

	require.False(t, reg.IsRunning("j1"))
	require.Equal(t, []string{"j1 STARTED", "t1 STARTED", "t1 CANCELED", "j1 CANCELED"}, f.history.lines())
	require.Equal(t, []int{model.ExitCanceled}, f.catalog.jobCodes("j1"))
	require.Equal(t, []int{model.ExitCanceled}, f.catalog.taskCodes("t1"))
	requireFile(t, f.path("after"), false)

	// the job can run again
	f.cfg.ToolPath = script(t, "rsync-ok", "exit 0")
	reg = NewRegistry(f.cfg)
	res, err := reg.Run(t.Context(), job, false)
	require.NoError(t, err)
	require.Equal(t, model.StatusDone, res.Status)
}

func TestRegistryStopIdle(t *testing.T) {
	reg := NewRegistry(Config{Catalog: newCatalog()})
	reg.Stop("nope")
	reg.StopAll()
	require.False(t, reg.IsRunning("nope"))
}

func TestRegistryStopAll(t *testing.T) {
	f, reg := slowFixture(t)
	f.catalog.tasks["t2"] = task("t2", 0)

	require.NoError(t, reg.Start(t.Context(), model.Job{ID: "j1", Tasks: []string{"t1"}}, false))
	require.NoError(t, reg.Start(t.Context(), model.Job{ID: "j2", Tasks: []string{"t2"}}, true))
	waitStarted(t, f)

	reg.StopAll()
	waitAll(t, reg, 5*time.Second)
	require.Empty(t, reg.Running())
}

func TestRegistryContextCanceled(t *testing.T) {
	f, reg := slowFixture(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, reg.Start(ctx, model.Job{ID: "j1", Tasks: []string{"t1"}}, false))
	waitStarted(t, f)
	cancel()
	waitAll(t, reg, 5*time.Second)
	require.Equal(t, []int{model.ExitCanceled}, f.catalog.jobCodes("j1"))
}
