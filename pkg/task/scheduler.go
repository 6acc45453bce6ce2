package task

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ResourceSpec registers a Resource with its Default Task.
type ResourceSpec struct {
	ID Resource
	// Default runs whenever no explicit task holds ID. It must require
	// exactly ID.
	Default *Task
	// OnRelease, if set, runs when an explicit owner lets go of ID.
	OnRelease func()
}

type slot struct {
	id            Resource
	owner         *Task
	def           *Task
	defaultActive bool
	onRelease     func()
}

// Scheduler drives tasks once per control cycle and keeps every Resource
// owned by exactly one task. It is not safe for concurrent use; all calls
// must come from the control loop goroutine.
type Scheduler struct {
	log     *slog.Logger
	metrics *Metrics

	slots    map[Resource]*slot
	order    []Resource
	running  []*Task
	pending  []*Task
	bindings []*Binding

	cycle     Cycle
	ticks     uint64
	conflicts rate.Sometimes
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:       slog.Default(),
		slots:     make(map[Resource]*slot),
		conflicts: rate.Sometimes{First: 1, Interval: time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a Resource and its Default Task.
func (s *Scheduler) Register(rs ResourceSpec) error {
	if _, ok := s.slots[rs.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, rs.ID)
	}
	def := rs.Default
	if def == nil {
		return fmt.Errorf("%w: %s has no default", ErrInvalidDefault, rs.ID)
	}
	if len(def.requires) != 1 || def.requires[0] != rs.ID {
		return fmt.Errorf("%w: %q requires %s, want {%s}", ErrInvalidDefault, def.name, def.requires, rs.ID)
	}
	if def.state != Unscheduled || def.isDefault {
		return fmt.Errorf("%w: %q already in use", ErrInvalidDefault, def.name)
	}
	def.isDefault = true
	s.slots[rs.ID] = &slot{id: rs.ID, def: def, onRelease: rs.OnRelease}
	s.order = append(s.order, rs.ID)
	return nil
}

// Bind adds a binding. Bindings are applied in the order they are bound, so a
// later binding wins a resource both want in the same cycle.
func (s *Scheduler) Bind(name string, cond *Condition, mode Mode, factory Factory) *Binding {
	b := &Binding{name: name, cond: cond, mode: mode, factory: factory}
	s.bindings = append(s.bindings, b)
	return b
}

// Schedule queues t for install at the start of the next Tick, before any
// binding fires. Conflicts are resolved at install time.
func (s *Scheduler) Schedule(t *Task) error {
	if err := s.validate(t); err != nil {
		return err
	}
	if slices.Contains(s.pending, t) {
		return nil
	}
	s.pending = append(s.pending, t)
	return nil
}

// Cancel interrupts t if it is running and returns its resources to their
// defaults.
func (s *Scheduler) Cancel(t *Task) {
	s.pending = slices.DeleteFunc(s.pending, func(p *Task) bool { return p == t })
	if t == nil || t.state != Running || !slices.Contains(s.running, t) {
		return
	}
	s.evict(t, s.cycle, "cancelled")
}

// CancelAll interrupts every explicit task.
func (s *Scheduler) CancelAll() {
	s.pending = nil
	for _, t := range slices.Clone(s.running) {
		if t.state == Running {
			s.evict(t, s.cycle, "cancelled")
		}
	}
}

// Owner returns the task that currently drives r: the explicit owner if any,
// else the default task. It returns nil for unknown resources.
func (s *Scheduler) Owner(r Resource) *Task {
	sl, ok := s.slots[r]
	if !ok {
		return nil
	}
	if sl.owner != nil {
		return sl.owner
	}
	return sl.def
}

// IsRunning reports whether t is a running top-level task.
func (s *Scheduler) IsRunning(t *Task) bool {
	return t != nil && t.state == Running && slices.Contains(s.running, t)
}

// Running returns the explicit top-level tasks in install order.
func (s *Scheduler) Running() []*Task {
	return slices.Clone(s.running)
}

// Resources returns the registered resources in registration order.
func (s *Scheduler) Resources() []Resource {
	return slices.Clone(s.order)
}

// Cycle returns the most recent cycle.
func (s *Scheduler) Cycle() Cycle { return s.cycle }

// Tick runs one control cycle: sample conditions, install queued and
// triggered tasks, step running tasks, then run defaults on free resources.
func (s *Scheduler) Tick(now time.Time) {
	c := Cycle{Index: s.ticks, Now: now}
	s.cycle = c
	s.ticks++

	for _, b := range s.bindings {
		b.cond.sample(c.Index)
	}

	pending := s.pending
	s.pending = nil
	for _, t := range pending {
		_ = s.install(t, c, "scheduled")
	}

	for _, b := range s.bindings {
		if b.cancels() {
			s.evict(b.current, c, "condition fell")
		}
		if b.fires() {
			s.fire(b, c)
		}
	}

	for _, t := range slices.Clone(s.running) {
		if t.state != Running {
			continue
		}
		if t.step(c) {
			s.release(t)
			s.remove(t)
			s.metrics.finish()
			s.log.Debug("task finished", "task", t.name, "id", t.id, "cycle", c.Index)
		}
	}

	for _, r := range s.order {
		sl := s.slots[r]
		if sl.owner != nil {
			continue
		}
		if !sl.defaultActive {
			sl.def.reset()
			sl.def.start(c)
			sl.defaultActive = true
		}
		if sl.def.step(c) {
			// Restarted next cycle.
			sl.defaultActive = false
		}
	}

	s.metrics.cycle(len(s.running))
}

func (s *Scheduler) fire(b *Binding, c Cycle) {
	b.failed, b.blocker = true, nil
	t, err := b.factory()
	if err != nil {
		s.log.Error("binding factory failed", "binding", b.name, "error", err)
		return
	}
	if err := s.validate(t); err != nil {
		s.log.Error("binding produced unusable task", "binding", b.name, "error", err)
		return
	}
	if err := s.install(t, c, b.name); err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			b.blocker = ce.holder
		}
		return
	}
	b.current = t
	b.failed = false
}

func (s *Scheduler) validate(t *Task) error {
	if t == nil {
		return fmt.Errorf("%w: nil task", ErrTaskSpent)
	}
	if t.isDefault {
		return fmt.Errorf("%w: %q is a default task", ErrInvalidDefault, t.name)
	}
	if t.state != Unscheduled {
		return fmt.Errorf("%w: %q is %s", ErrTaskSpent, t.name, t.state)
	}
	for _, r := range t.requires {
		if _, ok := s.slots[r]; !ok {
			return fmt.Errorf("%w: %q requires %s", ErrUnknownResource, t.name, r)
		}
	}
	return nil
}

func (s *Scheduler) install(t *Task, c Cycle, source string) error {
	if t.state != Unscheduled {
		return fmt.Errorf("%w: %q is %s", ErrTaskSpent, t.name, t.state)
	}

	var evict []*Task
	for _, r := range t.requires {
		owner := s.slots[r].owner
		if owner == nil || slices.Contains(evict, owner) {
			continue
		}
		if !owner.interruptible {
			err := &ConflictError{Task: t.name, Holder: owner.name, Resource: r, holder: owner}
			s.metrics.conflict()
			s.conflicts.Do(func() {
				s.log.Warn("install rejected", "task", t.name, "source", source, "error", err)
			})
			return err
		}
		evict = append(evict, owner)
	}

	for _, o := range evict {
		s.evict(o, c, "preempted by "+t.name)
	}
	for _, r := range t.requires {
		sl := s.slots[r]
		if sl.defaultActive {
			sl.def.interrupt(c)
			sl.defaultActive = false
		}
		sl.owner = t
	}

	t.id = uuid.NewString()
	t.start(c)
	s.running = append(s.running, t)
	s.metrics.install(source)
	s.log.Debug("task installed", "task", t.name, "id", t.id, "source", source,
		"requires", t.requires.String(), "cycle", c.Index)
	return nil
}

func (s *Scheduler) evict(t *Task, c Cycle, reason string) {
	t.interrupt(c)
	s.release(t)
	s.remove(t)
	s.metrics.interrupt()
	s.log.Debug("task interrupted", "task", t.name, "id", t.id, "reason", reason, "cycle", c.Index)
}

func (s *Scheduler) release(t *Task) {
	for _, r := range t.requires {
		sl := s.slots[r]
		if sl.owner != t {
			continue
		}
		sl.owner = nil
		if sl.onRelease != nil {
			sl.onRelease()
		}
	}
}

func (s *Scheduler) remove(t *Task) {
	s.running = slices.DeleteFunc(s.running, func(r *Task) bool { return r == t })
}
