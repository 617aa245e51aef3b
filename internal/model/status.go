package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusStarted  Status = "STARTED"
	StatusDone     Status = "DONE"
	StatusFailed   Status = "FAILED"
	StatusCanceled Status = "CANCELED"
)

// Exit codes recorded as a job or task last run exit code.
const (
	ExitOK       = 0
	ExitFailed   = 1
	ExitCanceled = 99
)

const dryRunMarker = "(dry-run)"

// RunRecord is a single line of the append-only history file.
type RunRecord struct {
	EntityID string
	Time     time.Time
	Status   Status
	DryRun   bool
}

// String formats the record as "<entityId> <timestamp> <STATUS>[ (dry-run)]".
func (r RunRecord) String() string {
	s := r.EntityID + " " + r.Time.Format(time.RFC3339) + " " + string(r.Status)
	if r.DryRun {
		s += " " + dryRunMarker
	}
	return s
}

func ParseRunRecord(line string) (RunRecord, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 && len(fields) != 4 {
		return RunRecord{}, fmt.Errorf("invalid history line %q: got %d fields", line, len(fields))
	}
	t, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return RunRecord{}, fmt.Errorf("parsing history timestamp: %w", err)
	}
	rec := RunRecord{
		EntityID: fields[0],
		Time:     t,
		Status:   Status(fields[2]),
	}
	switch rec.Status {
	case StatusStarted, StatusDone, StatusFailed, StatusCanceled:
	default:
		return RunRecord{}, fmt.Errorf("invalid history status %q", fields[2])
	}
	if len(fields) == 4 {
		if fields[3] != dryRunMarker {
			return RunRecord{}, fmt.Errorf("invalid history marker %q", fields[3])
		}
		rec.DryRun = true
	}
	return rec, nil
}

// ExitCode maps a terminal status to the recorded exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusDone:
		return ExitOK
	case StatusCanceled:
		return ExitCanceled
	default:
		return ExitFailed
	}
}
