// Package precondition decides whether a pulled message carries work the agent
// should execute and claims the task dispatch when it does.
package precondition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/dao"
	"github.com/viant/gridagent/service/dao/sessions"
	"github.com/viant/gridagent/service/dao/tasks"
	"github.com/viant/gridagent/service/messaging"
	"github.com/viant/gridagent/service/resolver"
)

// DefaultTTL is the dispatch lease used when none is configured.
const DefaultTTL = time.Minute

// Claim is an eligible task with the dispatch lease held for it
type Claim struct {
	Task     *task.TaskData
	Dispatch *task.Dispatch
}

// Service checks task preconditions
type Service struct {
	tasks    tasks.Service
	sessions sessions.Service
	resolver *resolver.Service
	ttl      time.Duration
}

// New creates a precondition checker claiming leases of ttl
func New(taskStore tasks.Service, sessionStore sessions.Service, resolver *resolver.Service, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{tasks: taskStore, sessions: sessionStore, resolver: resolver, ttl: ttl}
}

// TTL returns the dispatch lease duration
func (s *Service) TTL() time.Duration { return s.ttl }

// Check returns the claimed task or nil when the message carries no work. When
// it returns nil the message status tells the outcome: processed for a skip,
// postponed for a requeue. Errors leave the status untouched.
func (s *Service) Check(ctx context.Context, msg messaging.Message) (*Claim, error) {
	t, err := s.tasks.Read(ctx, msg.TaskID())
	if err != nil {
		return nil, fmt.Errorf("failed to read task for message %v: %w", msg.MessageID(), err)
	}

	if t.Status.IsTerminal() {
		msg.SetStatus(messaging.StatusProcessed)
		return nil, nil
	}
	if t.Status == task.StatusCanceling {
		if err := s.tasks.UpdateStatus(ctx, t.ID, task.StatusCanceled); err != nil && !errors.Is(err, task.ErrInvalidTransition) {
			return nil, err
		}
		msg.SetStatus(messaging.StatusProcessed)
		return nil, nil
	}
	moot, err := s.isMoot(ctx, t)
	if err != nil {
		return nil, err
	}
	if moot {
		msg.SetStatus(messaging.StatusProcessed)
		return nil, nil
	}
	if t.Status == task.StatusCreating {
		msg.SetStatus(messaging.StatusPostponed)
		return nil, nil
	}

	if len(t.Dependencies) > 0 {
		satisfied, err := s.resolver.IsSatisfied(ctx, t)
		if err != nil {
			return nil, err
		}
		if !satisfied {
			msg.SetStatus(messaging.StatusPostponed)
			return nil, nil
		}
	}

	dispatch, err := s.tasks.AcquireDispatch(ctx, t.ID, s.ttl)
	switch {
	case err == nil:
	case errors.Is(err, dao.ErrClaimConflict):
		log.Printf("precondition: task %v skipped: %v", t.ID, err)
		msg.SetStatus(messaging.StatusProcessed)
		return nil, nil
	case errors.Is(err, task.ErrInvalidTransition):
		// status changed since the read; look again on the next delivery
		msg.SetStatus(messaging.StatusPostponed)
		return nil, nil
	default:
		return nil, err
	}
	t.Status = task.StatusDispatched
	return &Claim{Task: t, Dispatch: dispatch}, nil
}

// isMoot reports whether the owning session was cancelled or no longer exists
func (s *Service) isMoot(ctx context.Context, t *task.TaskData) (bool, error) {
	if t.SessionID == "" {
		return false, nil
	}
	cancelled, err := s.sessions.IsCancelled(ctx, t.SessionID)
	if errors.Is(err, dao.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session %v: %w", t.SessionID, err)
	}
	return cancelled, nil
}
