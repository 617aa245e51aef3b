package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/store"

	"github.com/stretchr/testify/require"
)

const definitions = `
version: 0
jobs:
  - id: backup
    name: Nightly backup
    tasks: [home, photos]
    hooks:
      before:
        enabled: true
        command: /usr/local/bin/mount-backup
        halt_on_error: true
    env:
      RSYNC_RSH: ssh -p 2222
    log_mode: unique
    schedule:
      enabled: true
      cron: ["0 2 * * *"]
tasks:
  - id: home
    name: home
    source: /home/user/
    destination: /mnt/backup/home
    options: ["-a", "--delete"]
    excludes: [".cache"]
    job_halt_on_error: true
  - name: photos
    source: /srv/photos
    destination: /mnt/backup/photos
    last_run: "2025-03-01T10:07:00Z"
    last_run_exit_code: 23
`

func TestDecode(t *testing.T) {
	defs, err := store.Decode(strings.NewReader(definitions))
	require.NoError(t, err)
	require.Len(t, defs.Jobs, 1)
	require.Len(t, defs.Tasks, 2)

	job := defs.Jobs[0]
	require.Equal(t, "backup", job.ID)
	require.Equal(t, []string{"home", "photos"}, job.Tasks)
	require.True(t, job.Hooks.Before.Enabled)
	require.True(t, job.Hooks.Before.HaltOnError)
	require.False(t, job.Hooks.After.Enabled)
	require.Equal(t, model.LogModeUnique, job.LogMode)
	// defaults
	require.True(t, job.LogOutput)
	require.True(t, job.LogErrors)
	require.False(t, job.LogSeparateErrors)
	require.Equal(t, []string{"0 2 * * *"}, job.Schedule.Cron)
	require.Equal(t, "ssh -p 2222", job.Env["RSYNC_RSH"])
	require.Nil(t, job.LastRun)

	home := defs.Tasks[0]
	require.Equal(t, []string{"-a", "--delete"}, home.Options)
	require.Equal(t, []string{".cache"}, home.Excludes)
	require.True(t, home.JobHaltOnError)
	require.False(t, home.NoAdditionalDir)

	photos := defs.Tasks[1]
	require.Empty(t, photos.ID)
	require.NotNil(t, photos.LastRun)
	require.True(t, time.Date(2025, 3, 1, 10, 7, 0, 0, time.UTC).Equal(photos.LastRun.Time))
	require.NotNil(t, photos.LastRunExitCode)
	require.Equal(t, 23, *photos.LastRunExitCode)

	require.True(t, store.AssignIDs(&defs))
	require.NotEmpty(t, defs.Tasks[1].ID)
	require.False(t, store.AssignIDs(&defs))
}

func TestDecode_Empty(t *testing.T) {
	defs, err := store.Decode(strings.NewReader("\n"))
	require.NoError(t, err)
	require.Empty(t, defs.Jobs)
}

func TestDecode_Fail(t *testing.T) {
	cases := []struct {
		scenario string
		given    string
		code     string
	}{
		{"unknown_field", "jobs:\n  - name: a\n    colour: red\n", "unknown_field"},
		{"missing_name", "tasks:\n  - source: /a\n    destination: /b\n", ""},
		{"bad_log_mode", "jobs:\n  - name: a\n    log_mode: sometimes\n", ""},
		{"bad_version", "version: 3\n", ""},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := store.Decode(strings.NewReader(tc.given))
			require.Error(t, err)
			details := store.ErrDetails(err)
			require.NotEmpty(t, details)
			if tc.code != "" {
				var codes []string
				for _, d := range details {
					codes = append(codes, d.Code)
				}
				require.Contains(t, codes, tc.code)
			}
		})
	}
}

func TestFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", "jobs.yaml")
	f := store.NewFile(path)

	t.Run("missing file", func(t *testing.T) {
		defs, err := f.Load(t.Context())
		require.NoError(t, err)
		require.Empty(t, defs.Jobs)
		require.Empty(t, defs.Tasks)
	})

	code := 0
	saved := model.Definitions{
		Jobs: []model.Job{{
			ID:              "j1",
			Name:            "job one",
			Tasks:           []string{"t1"},
			LogMode:         model.LogModeReplace,
			LogOutput:       true,
			LastRun:         model.NewTimestamp(time.Date(2025, 3, 1, 10, 7, 0, 0, time.UTC)),
			LastRunExitCode: &code,
		}},
		Tasks: []model.Task{{
			ID:          "t1",
			Name:        "task one",
			Source:      "/src",
			Destination: "/dst",
			Env:         map[string]string{"A": "B"},
		}},
	}

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, f.Save(t.Context(), saved))
		loaded, err := f.Load(t.Context())
		require.NoError(t, err)
		require.Len(t, loaded.Jobs, 1)
		job := loaded.Jobs[0]
		require.Equal(t, "j1", job.ID)
		require.Equal(t, model.LogModeReplace, job.LogMode)
		require.NotNil(t, job.LastRun)
		require.True(t, saved.Jobs[0].LastRun.Equal(job.LastRun.Time))
		require.Equal(t, 0, *job.LastRunExitCode)
		require.Equal(t, saved.Tasks, loaded.Tasks)
	})

	t.Run("no temporary files left", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})
}
