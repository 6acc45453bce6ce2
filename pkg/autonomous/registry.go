// Package autonomous holds the pre-programmed routines the robot can run at
// the start of a match and the registry the operator chooses them from.
package autonomous

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gwillem/taskbot/pkg/task"
)

var (
	ErrUnknownRoutine   = errors.New("unknown routine")
	ErrDuplicateRoutine = errors.New("duplicate routine")
	ErrNoRoutine        = errors.New("no routine")
)

// Registry maps routine names to factories. Every Build returns a fresh task
// tree, so a routine can run in more than one match.
type Registry struct {
	names    []string
	routines map[string]task.Factory
	def      string
}

func NewRegistry() *Registry {
	return &Registry{routines: make(map[string]task.Factory)}
}

// Register adds a routine. The factory is built once up front so a malformed
// composite is reported here and not when the phase starts. The first
// routine registered is the default until SetDefault says otherwise.
func (r *Registry) Register(name string, f task.Factory) error {
	if _, ok := r.routines[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRoutine, name)
	}
	if _, err := build(name, f); err != nil {
		return err
	}
	r.routines[name] = f
	r.names = append(r.names, name)
	if r.def == "" {
		r.def = name
	}
	return nil
}

// SetDefault selects the routine used when the chooser names none or an
// unknown one.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.routines[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoutine, name)
	}
	r.def = name
	return nil
}

// Names returns the routine names in registration order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

func (r *Registry) Default() string { return r.def }

// Resolve returns name if it is registered, else the default.
func (r *Registry) Resolve(name string) string {
	if _, ok := r.routines[name]; ok {
		return name
	}
	return r.def
}

// Build returns a fresh instance of the named routine, falling back to the
// default for unknown names.
func (r *Registry) Build(name string) (*task.Task, error) {
	resolved := r.Resolve(name)
	f, ok := r.routines[resolved]
	if !ok {
		return nil, ErrNoRoutine
	}
	return build(resolved, f)
}

func build(name string, f task.Factory) (*task.Task, error) {
	t, err := f()
	if err != nil {
		return nil, fmt.Errorf("routine %q: %w", name, err)
	}
	if t == nil {
		return nil, fmt.Errorf("routine %q: %w", name, ErrNoRoutine)
	}
	return t, nil
}
