package executor

// Outcome is the result of a hook.
type Outcome int

const (
	// Continue means the hook succeeded or had nothing to do.
	Continue Outcome = iota
	// Failed means the hook failed, but the caller may go on.
	Failed
	// Halt means the hook failed and has HaltOnError set, the caller must
	// stop its remaining steps.
	Halt
	// Canceled means the run was stopped.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Failed:
		return "failed"
	case Halt:
		return "halt"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}
