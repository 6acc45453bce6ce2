package task

import (
	"errors"
	"fmt"
)

var (
	ErrOverlappingChildren = errors.New("parallel children share a resource")
	ErrResourceConflict    = errors.New("resource held by non-interruptible task")
	ErrUnknownResource     = errors.New("unknown resource")
	ErrDuplicateResource   = errors.New("resource already registered")
	ErrInvalidDefault      = errors.New("invalid default task")
	ErrTaskSpent           = errors.New("task already ran")
)

// CompositeError reports two children of one parallel group claiming the same
// resource.
type CompositeError struct {
	Composite string
	Resource  Resource
	First     string
	Second    string
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("%s: %q: %q and %q both require %s",
		ErrOverlappingChildren, e.Composite, e.First, e.Second, e.Resource)
}

func (e *CompositeError) Unwrap() error { return ErrOverlappingChildren }

// ConflictError reports an install rejected because a non-interruptible task
// holds one of the requested resources.
type ConflictError struct {
	Task     string
	Holder   string
	Resource Resource

	holder *Task
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %q wants %s held by %q",
		ErrResourceConflict, e.Task, e.Resource, e.Holder)
}

func (e *ConflictError) Unwrap() error { return ErrResourceConflict }
