package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/CZERTAINLY/Syncer/internal/executor"
	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/progress"

	"github.com/stretchr/testify/require"
)

func TestPrinter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	p := newPrinter(&stdout, &stderr, true)

	p.Notify(executor.Event{Kind: executor.EventState, JobID: "j1", Status: model.StatusStarted, DryRun: true})
	p.Notify(executor.Event{Kind: executor.EventLog, JobID: "j1", TaskID: "t1", Line: "sending incremental file list"})
	p.Notify(executor.Event{Kind: executor.EventLog, JobID: "j1", TaskID: "t1", Stream: executor.Stderr, Line: "oops"})
	p.Notify(executor.Event{Kind: executor.EventProgress, JobID: "j1", TaskID: "t1", Progress: progress.Progress{
		Size: "1,024", Percentage: 0.45, Speed: "1.00MB/s", ETA: "0:00:10",
	}})
	p.Notify(executor.Event{Kind: executor.EventState, JobID: "j1", TaskID: "t1", Status: model.StatusDone})

	require.Equal(t, "j1: job STARTED (dry-run)\n"+
		"j1: sending incremental file list\n"+
		"j1: 1,024  45% 1.00MB/s 0:00:10\n"+
		"j1: task t1 DONE\n", stdout.String())
	require.Equal(t, "j1: oops\n", stderr.String())
}

func TestNextRun(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	job := model.Job{Schedule: model.Schedule{Enabled: true, Cron: []string{"0 12 * * *", "invalid", "0 11 * * *"}}}
	require.Equal(t, "2024-05-01 11:00:00", nextRun(job, now))

	job.Schedule.Enabled = false
	require.Equal(t, "-", nextRun(job, now))
}

func TestColumns(t *testing.T) {
	require.Equal(t, "-", lastRun(nil))
	require.Equal(t, "-", exitCodeString(nil))
	code := 99
	require.Equal(t, "99", exitCodeString(&code))
	require.Equal(t, "exit code 99", exitCode(99).Error())
}
