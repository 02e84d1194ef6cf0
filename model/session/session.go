package session

import (
	"errors"
	"time"

	"github.com/viant/gridagent/model/task"
)

// Status represents a session state; transitions are one way.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCancelled Status = "cancelled"
)

// ErrInvalidTransition is returned for any move other than Running -> Cancelled
var ErrInvalidTransition = errors.New("session: invalid status transition")

// Transition validates the move from s to target.
func (s Status) Transition(target Status) error {
	if s == StatusRunning && target == StatusCancelled {
		return nil
	}
	return ErrInvalidTransition
}

// SessionData groups tasks submitted together
type SessionData struct {
	ID             string        `json:"id"`
	ParentTaskID   string        `json:"parentTaskId,omitempty"`
	Status         Status        `json:"status"`
	DefaultOptions *task.Options `json:"defaultOptions,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	CancelledAt    *time.Time    `json:"cancelledAt,omitempty"`
}

// IsCancelled returns true once the session was cancelled
func (s *SessionData) IsCancelled() bool {
	return s.Status == StatusCancelled
}
