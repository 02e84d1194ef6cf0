package task

import (
	"errors"
	"fmt"
)

// Status represents the lifecycle state of a task
type Status string

const (
	StatusCreating   Status = "creating"
	StatusSubmitted  Status = "submitted"
	StatusDispatched Status = "dispatched"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	// StatusCanceling is requested cancellation; the next execution attempt that
	// observes it finalizes the task to StatusCanceled.
	StatusCanceling Status = "canceling"
	StatusCanceled  Status = "canceled"
)

// ErrInvalidTransition is returned when a status change is not part of the transition table.
var ErrInvalidTransition = errors.New("task: invalid status transition")

// transitions lists every allowed target per source status. Dispatched -> Dispatched
// covers re-dispatch of a task whose previous lease expired; Canceling -> Canceling
// makes a repeated cancel request a no-op.
var transitions = map[Status][]Status{
	StatusCreating:   {StatusSubmitted, StatusCanceling},
	StatusSubmitted:  {StatusDispatched, StatusCanceling},
	StatusDispatched: {StatusDispatched, StatusCompleted, StatusError, StatusCanceling},
	StatusCanceling:  {StatusCanceling, StatusCanceled},
	StatusCompleted:  nil,
	StatusError:      nil,
	StatusCanceled:   nil,
}

// Statuses returns all known statuses.
func Statuses() []Status {
	return []Status{StatusCreating, StatusSubmitted, StatusDispatched, StatusCompleted, StatusError, StatusCanceling, StatusCanceled}
}

// IsValid returns true for a known status
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal returns true when no further transition is possible
func (s Status) IsTerminal() bool {
	targets, ok := transitions[s]
	return ok && len(targets) == 0
}

// CanTransition reports whether s may move to target.
func (s Status) CanTransition(target Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// Transition validates the move from s to target.
func (s Status) Transition(target Status) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if !s.CanTransition(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, target)
	}
	return nil
}
