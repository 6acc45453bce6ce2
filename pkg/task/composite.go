package task

import "time"

// Policy decides when a parallel group finishes.
type Policy int

const (
	// All finishes once every child has finished.
	All Policy = iota
	// Race finishes when the first child finishes and interrupts the rest.
	Race
)

func (p Policy) String() string {
	if p == Race {
		return "race"
	}
	return "all"
}

// Sequence returns a task running children one at a time, in order. It holds
// the union of the children's resources for its whole lifetime.
func Sequence(name string, children ...*Task) *Task {
	return newComposite(name, KindSequential, All, children)
}

// Parallel returns a task running all children until every one has finished.
// Children must not share a resource.
func Parallel(name string, children ...*Task) (*Task, error) {
	return newParallel(name, All, children)
}

// RaceGroup returns a task running all children until the first one finishes.
// Children must not share a resource.
func RaceGroup(name string, children ...*Task) (*Task, error) {
	return newParallel(name, Race, children)
}

// Must panics if err is non-nil. It is meant for groups whose shape is fixed
// at compile time and validated by tests.
func Must(t *Task, err error) *Task {
	if err != nil {
		panic(err)
	}
	return t
}

// WithTimeout bounds t: the returned task finishes when t does or when bound
// has elapsed since it started, whichever comes first. On the timeout path t
// is interrupted.
func WithTimeout(t *Task, bound time.Duration) *Task {
	if t == nil {
		panic("task: WithTimeout of nil task")
	}
	return &Task{
		name:          t.name,
		kind:          KindTimeout,
		requires:      t.requires,
		interruptible: t.interruptible,
		children:      []*Task{t},
		bound:         bound,
	}
}

// Bound returns the timeout of a decorator, or zero for other kinds.
func (t *Task) Bound() time.Duration { return t.bound }

// Policy returns the completion policy of a parallel group.
func (t *Task) Policy() Policy { return t.policy }

func newParallel(name string, policy Policy, children []*Task) (*Task, error) {
	claimed := make(map[Resource]string)
	for _, ch := range children {
		if ch == nil {
			continue
		}
		for _, r := range ch.requires {
			if first, ok := claimed[r]; ok {
				return nil, &CompositeError{
					Composite: name,
					Resource:  r,
					First:     first,
					Second:    ch.name,
				}
			}
			claimed[r] = ch.name
		}
	}
	return newComposite(name, KindParallel, policy, children), nil
}

func newComposite(name string, kind Kind, policy Policy, children []*Task) *Task {
	interruptible := true
	for _, ch := range children {
		if ch == nil {
			panic("task: nil child in " + name)
		}
		interruptible = interruptible && ch.interruptible
	}
	return &Task{
		name:          name,
		kind:          kind,
		requires:      union(children),
		interruptible: interruptible,
		children:      children,
		policy:        policy,
	}
}

func (t *Task) stepSequential(c Cycle) bool {
	if t.cursor >= len(t.children) {
		return true
	}
	if !t.children[t.cursor].step(c) {
		return false
	}
	t.cursor++
	if t.cursor >= len(t.children) {
		return true
	}
	// Start the next child in the same cycle so no cycle is lost.
	t.children[t.cursor].start(c)
	return false
}

func (t *Task) stepParallel(c Cycle) bool {
	if len(t.children) == 0 {
		return true
	}
	anyDone, allDone := false, true
	for _, ch := range t.children {
		if ch.state == Running && ch.step(c) {
			anyDone = true
		}
		if ch.state != Finished {
			allDone = false
		}
	}
	if t.policy == Race {
		if !anyDone {
			return false
		}
		for _, ch := range t.children {
			ch.interrupt(c)
		}
		return true
	}
	return allDone
}

func (t *Task) stepTimeout(c Cycle) bool {
	inner := t.children[0]
	if inner.step(c) {
		return true
	}
	if c.Now.Sub(t.started) >= t.bound {
		inner.interrupt(c)
		return true
	}
	return false
}
