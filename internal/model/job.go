package model

import "maps"

// LogMode selects how a job's output log is opened on each run.
type LogMode string

const (
	LogModeAppend  LogMode = "append"  // keep a single file, append to it
	LogModeReplace LogMode = "replace" // keep a single file, truncate on each run
	LogModeUnique  LogMode = "unique"  // one file per run, suffixed with the run start time
)

// ExecuteItem is an optional hook command run before or after a job or a task.
type ExecuteItem struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Command     string `json:"command" yaml:"command"`
	HaltOnError bool   `json:"halt_on_error" yaml:"halt_on_error"`
}

// Active reports if the hook has anything to execute.
func (e ExecuteItem) Active() bool {
	return e.Enabled && e.Command != ""
}

// Hooks are the four hook slots shared by jobs and tasks.
type Hooks struct {
	Before    ExecuteItem `json:"before" yaml:"before"`
	AfterOK   ExecuteItem `json:"after_ok" yaml:"after_ok"`
	AfterFail ExecuteItem `json:"after_fail" yaml:"after_fail"`
	After     ExecuteItem `json:"after" yaml:"after"`
}

type Schedule struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Cron    []string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// Job is a named, schedulable, ordered list of task references.
// Tasks are referenced by id and owned by the task registry.
type Job struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Description       string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks             []string          `json:"tasks" yaml:"tasks"`
	Hooks             Hooks             `json:"hooks" yaml:"hooks"`
	Env               map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	LogMode           LogMode           `json:"log_mode" yaml:"log_mode"`
	LogOutput         bool              `json:"log_output" yaml:"log_output"`
	LogErrors         bool              `json:"log_errors" yaml:"log_errors"`
	LogSeparateErrors bool              `json:"log_separate_errors" yaml:"log_separate_errors"`
	Schedule          Schedule          `json:"schedule" yaml:"schedule"`
	LastRun           *Timestamp        `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	LastRunExitCode   *int              `json:"last_run_exit_code,omitempty" yaml:"last_run_exit_code,omitempty"`

	// Locked is true while a run of this job is active. Never persisted.
	Locked bool `json:"-" yaml:"-"`
}

// Clone returns a deep copy, so callers can't mutate registry state.
func (j Job) Clone() Job {
	j.Tasks = append([]string(nil), j.Tasks...)
	j.Env = maps.Clone(j.Env)
	j.Schedule.Cron = append([]string(nil), j.Schedule.Cron...)
	if j.LastRun != nil {
		t := *j.LastRun
		j.LastRun = &t
	}
	if j.LastRunExitCode != nil {
		c := *j.LastRunExitCode
		j.LastRunExitCode = &c
	}
	return j
}

// Task is one invocation of the synchronization tool, independent of any job.
type Task struct {
	ID              string            `json:"id" yaml:"id"`
	Name            string            `json:"name" yaml:"name"`
	Source          string            `json:"source" yaml:"source"`
	Destination     string            `json:"destination" yaml:"destination"`
	NoAdditionalDir bool              `json:"no_additional_dir" yaml:"no_additional_dir"`
	Options         []string          `json:"options,omitempty" yaml:"options,omitempty"`
	Excludes        []string          `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	Hooks           Hooks             `json:"hooks" yaml:"hooks"`
	JobHaltOnError  bool              `json:"job_halt_on_error" yaml:"job_halt_on_error"`
	DryRun          bool              `json:"dry_run" yaml:"dry_run"`
	Env             map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	LastRun         *Timestamp        `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	LastRunExitCode *int              `json:"last_run_exit_code,omitempty" yaml:"last_run_exit_code,omitempty"`
}

func (t Task) Clone() Task {
	t.Options = append([]string(nil), t.Options...)
	t.Excludes = append([]string(nil), t.Excludes...)
	t.Env = maps.Clone(t.Env)
	if t.LastRun != nil {
		ts := *t.LastRun
		t.LastRun = &ts
	}
	if t.LastRunExitCode != nil {
		c := *t.LastRunExitCode
		t.LastRunExitCode = &c
	}
	return t
}

// Definitions is the persisted form of all jobs and tasks.
type Definitions struct {
	Version int    `json:"version" yaml:"version"` // fixed 0 for now
	Jobs    []Job  `json:"jobs" yaml:"jobs"`
	Tasks   []Task `json:"tasks" yaml:"tasks"`
}

// MergeEnv returns job-scope variables overridden by task-scope ones.
func MergeEnv(job, task map[string]string) map[string]string {
	if len(job) == 0 && len(task) == 0 {
		return nil
	}
	ret := make(map[string]string, len(job)+len(task))
	maps.Copy(ret, job)
	maps.Copy(ret, task)
	return ret
}
