package executor

import (
	"github.com/CZERTAINLY/Syncer/internal/model"
	"github.com/CZERTAINLY/Syncer/internal/progress"
)

// EventKind tells which fields of an Event are set.
type EventKind int

const (
	EventState    EventKind = iota // a job or task changed its Status
	EventLog                       // a child process printed Line
	EventProgress                  // the tool reported Progress
)

// Stream is the child output a log line comes from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Event is published by a run. TaskID is empty for job level events.
type Event struct {
	Kind   EventKind
	JobID  string
	RunID  string
	TaskID string
	DryRun bool

	// EventState
	Status   model.Status
	ExitCode int

	// EventLog
	Stream Stream
	Line   string

	// EventProgress
	Progress progress.Progress
}

// Observer gets the events of every run. Notify is called from the run
// goroutines and must not block.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}

type nopObserver struct{}

func (nopObserver) Notify(Event) {}
