// Package executor turns job and task definitions into hook and
// synchronization tool invocations.
//
// Overview
// The Registry is the entry point for every caller (CLI, server, tests). It
// owns the set of active JobRunners keyed by job id and refuses to start a
// job which already runs. A JobRunner executes on its own goroutine and
// removes itself from the Registry when it ends.
//
// Data flow:
//
//	Registry            JobRunner{job}           taskRunner/hookRunner    process.Runner
//	    |                     |                          |                      |
//	Start(job) -------------->| go Run()                 |                      |
//	    |                     | before hook ------------>| Run(hook) ---------->| exec
//	    |                     | for each task ---------->| before hook          |
//	    |                     |                          | Run(tool) ---------->| exec, lines
//	    |                     |                          | after ok|fail, after |
//	    |                     | after ok|fail, after --->|                      |
//	    |<---- release -------| history, last run        |                      |
//
// Hook and task results are Outcome values, a halt travels exactly one level
// up: a halting hook stops its task (or job), a failed task stops the job
// only when the task has JobHaltOnError set.
//
// Invariants:
//   - At most one JobRunner per job id at a time.
//   - History lines of a run are appended by its own goroutine only, so
//     STARTED always precedes DONE, FAILED or CANCELED.
//   - Dry runs pass --dry-run to the tool and never update last run fields.
//   - Stop is idempotent; it cancels the run context and kills the active child.
//
// Engine output is published to an Observer as Events, which keeps the
// package free of any presentation concerns.
package executor
