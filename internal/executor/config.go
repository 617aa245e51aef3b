package executor

import (
	"context"
	"time"

	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/process"
)

// ProcessRunner runs one external command at a time.
// It is satisfied by *process.Runner.
type ProcessRunner interface {
	Run(ctx context.Context, cmd process.Command, stdout, stderr process.LineFunc) (int, error)
	Cancel()
}

// Catalog resolves task references and records last run information.
// It is satisfied by *store.Catalog.
type Catalog interface {
	Task(id string) (model.Task, bool)
	RecordJobRun(ctx context.Context, jobID string, at time.Time, exitCode int) error
	RecordTaskRun(ctx context.Context, taskID string, at time.Time, exitCode int) error
}

// Appender stores history lines. It is satisfied by *history.File.
type Appender interface {
	Append(ctx context.Context, rec model.RunRecord) error
}

// Config is shared by all runs of a Registry.
type Config struct {
	// ToolPath is the synchronization tool executable, rsync by default.
	ToolPath string
	Catalog  Catalog
	History  Appender
	// LogDir is where job logs are opened, job logs are discarded when empty.
	LogDir string
	// RecordDryRuns enables history lines for dry runs.
	RecordDryRuns bool
	Observer      Observer

	// NewProcess and Now are replaced by tests.
	NewProcess func() ProcessRunner
	Now        func() time.Time
}

func (c Config) withDefaults() Config {
	if c.ToolPath == "" {
		c.ToolPath = "rsync"
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.NewProcess == nil {
		c.NewProcess = func() ProcessRunner { return process.NewRunner() }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
