package task

import "fmt"

// Mode is how a Binding turns condition samples into installs.
type Mode int

const (
	// WhileTrue runs the task while the condition holds and cancels it when
	// the condition falls. A task that finishes while the condition still
	// holds is rebuilt and installed again.
	WhileTrue Mode = iota
	// OnRisingEdgeHold starts the task on a rising edge and cancels it when
	// the condition falls.
	OnRisingEdgeHold
	// OnRisingEdgeOnce starts the task on a rising edge and leaves it to run
	// until it finishes on its own.
	OnRisingEdgeOnce
)

func (m Mode) String() string {
	switch m {
	case WhileTrue:
		return "while-true"
	case OnRisingEdgeHold:
		return "rising-edge-hold"
	case OnRisingEdgeOnce:
		return "rising-edge-once"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Factory builds a fresh task instance.
type Factory func() (*Task, error)

// Binding ties a Condition to a task Factory.
type Binding struct {
	name    string
	cond    *Condition
	mode    Mode
	factory Factory
	current *Task

	// Set when the last attempt failed; a WhileTrue binding then waits for a
	// fresh rising edge, or for blocker to let go, before building again.
	blocker *Task
	failed  bool
}

func (b *Binding) Name() string { return b.name }

func (b *Binding) Mode() Mode { return b.mode }

// Current returns the task most recently installed by b, if any.
func (b *Binding) Current() *Task { return b.current }

func (b *Binding) active() bool {
	return b.current != nil && b.current.state == Running
}

// fires reports whether b wants a new install this cycle.
func (b *Binding) fires() bool {
	switch b.mode {
	case WhileTrue:
		if !b.cond.Value() || b.active() {
			return false
		}
		if b.failed {
			return b.cond.Rising() || (b.blocker != nil && b.blocker.state != Running)
		}
		// A task evicted by another install waits for a fresh press.
		if b.current != nil && b.current.state == Interrupted {
			return b.cond.Rising()
		}
		return true
	case OnRisingEdgeHold, OnRisingEdgeOnce:
		return b.cond.Rising() && !b.active()
	}
	return false
}

// cancels reports whether b wants its running task stopped this cycle.
func (b *Binding) cancels() bool {
	if !b.active() {
		return false
	}
	switch b.mode {
	case WhileTrue:
		return !b.cond.Value()
	case OnRisingEdgeHold:
		return b.cond.Falling()
	}
	return false
}
