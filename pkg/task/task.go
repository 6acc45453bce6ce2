// Package task provides cooperative, cycle-driven task composition and
// resource arbitration for robot actuators.
//
// A Task declares the Resources it needs and is advanced once per control
// cycle by a Scheduler. Tasks compose into Sequential and Parallel groups and
// can be bounded with WithTimeout. Every Resource has a Default Task that runs
// whenever no explicitly scheduled Task holds it, so each Resource has exactly
// one owner on every cycle.
package task

import (
	"fmt"
	"time"
)

// Kind is the variant of a Task.
type Kind int

const (
	KindLeaf Kind = iota
	KindSequential
	KindParallel
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSequential:
		return "sequential"
	case KindParallel:
		return "parallel"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is the lifecycle state of a Task.
type State int

const (
	Unscheduled State = iota
	Running
	Finished
	Interrupted
)

func (s State) String() string {
	switch s {
	case Unscheduled:
		return "unscheduled"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Cycle describes the control cycle a hook is invoked in.
type Cycle struct {
	Index uint64
	Now   time.Time
}

// Hooks are the callbacks of a leaf Task. Nil hooks are no-ops; a nil Done
// means the task never finishes on its own.
type Hooks struct {
	Start     func(Cycle)
	Advance   func(Cycle)
	Done      func(Cycle) bool
	Interrupt func(Cycle)
}

// Task is a schedulable unit of action. The zero value is not usable; build
// tasks with Leaf, Instant, Sequence, Parallel, RaceGroup or WithTimeout.
//
// A Task is not reentrant: once it has finished or been interrupted it must be
// rebuilt to run again.
type Task struct {
	name          string
	kind          Kind
	requires      Requirements
	interruptible bool
	state         State

	hooks Hooks

	children []*Task
	cursor   int
	policy   Policy

	bound   time.Duration
	started time.Time

	id        string
	isDefault bool
}

// Leaf returns a task driven by hooks that requires the given resources.
func Leaf(name string, hooks Hooks, requires ...Resource) *Task {
	return &Task{
		name:          name,
		kind:          KindLeaf,
		requires:      NewRequirements(requires...),
		interruptible: true,
		hooks:         hooks,
	}
}

// Instant returns a zero-duration task: fn runs when the task starts and the
// task finishes on its first step.
func Instant(name string, fn func(Cycle), requires ...Resource) *Task {
	return Leaf(name, Hooks{
		Start: fn,
		Done:  func(Cycle) bool { return true },
	}, requires...)
}

// Wait returns a task that requires nothing and finishes after d.
func Wait(d time.Duration) *Task {
	return WithTimeout(Leaf("wait", Hooks{}), d)
}

func (t *Task) Name() string { return t.name }

func (t *Task) Kind() Kind { return t.kind }

func (t *Task) State() State { return t.state }

// ID returns the instance id assigned when the task was installed.
func (t *Task) ID() string { return t.id }

// Requires returns the resources the task holds while it runs.
func (t *Task) Requires() Requirements {
	out := make(Requirements, len(t.requires))
	copy(out, t.requires)
	return out
}

func (t *Task) Interruptible() bool { return t.interruptible }

// Children returns the direct children of a composite or decorator.
func (t *Task) Children() []*Task {
	out := make([]*Task, len(t.children))
	copy(out, t.children)
	return out
}

// Uninterruptible marks t so that installing a conflicting task is rejected
// while t runs. It returns t for chaining.
func (t *Task) Uninterruptible() *Task {
	t.interruptible = false
	return t
}

func (t *Task) String() string {
	return fmt.Sprintf("%s[%s %s]", t.name, t.kind, t.requires)
}

func (t *Task) start(c Cycle) {
	t.state = Running
	switch t.kind {
	case KindLeaf:
		if t.hooks.Start != nil {
			t.hooks.Start(c)
		}
	case KindSequential:
		t.cursor = 0
		if len(t.children) > 0 {
			t.children[0].start(c)
		}
	case KindParallel:
		for _, ch := range t.children {
			ch.start(c)
		}
	case KindTimeout:
		t.started = c.Now
		t.children[0].start(c)
	}
}

// step advances t by one cycle and reports whether it finished cleanly.
func (t *Task) step(c Cycle) bool {
	if t.state != Running {
		return t.state == Finished
	}
	var done bool
	switch t.kind {
	case KindLeaf:
		if t.hooks.Advance != nil {
			t.hooks.Advance(c)
		}
		done = t.hooks.Done != nil && t.hooks.Done(c)
	case KindSequential:
		done = t.stepSequential(c)
	case KindParallel:
		done = t.stepParallel(c)
	case KindTimeout:
		done = t.stepTimeout(c)
	}
	if done {
		t.state = Finished
	}
	return done
}

// interrupt stops a running task. Only running descendants see the interrupt.
func (t *Task) interrupt(c Cycle) {
	if t.state != Running {
		return
	}
	t.state = Interrupted
	switch t.kind {
	case KindLeaf:
		if t.hooks.Interrupt != nil {
			t.hooks.Interrupt(c)
		}
	case KindSequential:
		if t.cursor < len(t.children) {
			t.children[t.cursor].interrupt(c)
		}
	case KindParallel, KindTimeout:
		for _, ch := range t.children {
			ch.interrupt(c)
		}
	}
}

// reset returns a task tree to Unscheduled. Only default tasks are reset.
func (t *Task) reset() {
	t.state = Unscheduled
	t.cursor = 0
	for _, ch := range t.children {
		ch.reset()
	}
}
