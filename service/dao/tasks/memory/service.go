package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/gridagent/internal/clock"
	"github.com/viant/gridagent/internal/idgen"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/dao"
	"github.com/viant/gridagent/service/dao/criteria"
	"github.com/viant/gridagent/service/dao/store"
	"github.com/viant/gridagent/service/dao/tasks"
)

// record keeps a task with its current lease so both change atomically.
type record struct {
	task     *task.TaskData
	dispatch *task.Dispatch
	attempts int
}

func (r *record) clone() *record {
	clone := &record{task: r.task.Clone(), attempts: r.attempts}
	if r.dispatch != nil {
		dispatch := *r.dispatch
		clone.dispatch = &dispatch
	}
	return clone
}

// Service implements an in-memory, thread-safe task store.
type Service struct {
	records *store.MemoryStore[string, record]
}

var _ tasks.Service = (*Service)(nil)

// errUnchanged leaves a task already at the target status out of a bulk update count.
var errUnchanged = errors.New("status unchanged")

// New creates an empty store
func New() *Service {
	return &Service{records: store.NewMemoryStore[string, record](
		func(r *record) string { return r.task.ID },
		(*record).clone,
	)}
}

func (s *Service) Create(ctx context.Context, t *task.TaskData) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", task.ErrInvalidTransition, t.Status)
	}
	t = t.Clone()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = clock.Now()
	}
	return s.records.Create(ctx, &record{task: t})
}

func (s *Service) Read(ctx context.Context, id string) (*task.TaskData, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	r, err := s.records.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	return r.task, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	_, err := s.records.Update(ctx, id, func(r *record) error {
		if err := r.task.Status.Transition(status); err != nil {
			return fmt.Errorf("task %v: %w", id, err)
		}
		r.task.Status = status
		return nil
	})
	return err
}

func (s *Service) UpdateStatuses(ctx context.Context, filter *criteria.TaskFilter, status task.Status) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	updated := s.records.UpdateAll(ctx,
		func(r *record) bool { return filter.Match(r.task) },
		func(r *record) error {
			if r.task.Status == status {
				return errUnchanged
			}
			if err := r.task.Status.Transition(status); err != nil {
				return err
			}
			r.task.Status = status
			return nil
		})
	return updated, nil
}

func (s *Service) AcquireDispatch(ctx context.Context, taskID string, ttl time.Duration) (*task.Dispatch, error) {
	now := clock.Now()
	r, err := s.records.Update(ctx, taskID, func(r *record) error {
		if r.dispatch != nil && !r.dispatch.Expired(now) {
			return fmt.Errorf("%w: task %v held by %v", dao.ErrClaimConflict, taskID, r.dispatch.ID)
		}
		if err := r.task.Status.Transition(task.StatusDispatched); err != nil {
			return fmt.Errorf("task %v: %w", taskID, err)
		}
		r.attempts++
		r.task.Status = task.StatusDispatched
		r.task.StartedAt = &now
		r.dispatch = &task.Dispatch{
			ID:        idgen.New(),
			TaskID:    taskID,
			Attempt:   r.attempts,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.dispatch, nil
}

func (s *Service) ExtendDispatch(ctx context.Context, dispatch *task.Dispatch, ttl time.Duration) (*task.Dispatch, error) {
	now := clock.Now()
	r, err := s.records.Update(ctx, dispatch.TaskID, func(r *record) error {
		if r.dispatch == nil || r.dispatch.ID != dispatch.ID {
			return fmt.Errorf("%w: lease %v lost", dao.ErrClaimConflict, dispatch.ID)
		}
		r.dispatch.ExpiresAt = now.Add(ttl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.dispatch, nil
}

func (s *Service) ReleaseDispatch(ctx context.Context, dispatch *task.Dispatch) error {
	_, err := s.records.Update(ctx, dispatch.TaskID, func(r *record) error {
		if r.dispatch != nil && r.dispatch.ID == dispatch.ID {
			r.dispatch = nil
		}
		return nil
	})
	return err
}

func (s *Service) Finalize(ctx context.Context, dispatch *task.Dispatch, status task.Status, output *task.Output) error {
	now := clock.Now()
	_, err := s.records.Update(ctx, dispatch.TaskID, func(r *record) error {
		if r.dispatch == nil || r.dispatch.ID != dispatch.ID {
			return fmt.Errorf("%w: lease %v lost", dao.ErrClaimConflict, dispatch.ID)
		}
		if err := r.task.Status.Transition(status); err != nil {
			return fmt.Errorf("task %v: %w", dispatch.TaskID, err)
		}
		r.task.Status = status
		r.task.EndedAt = &now
		if output != nil {
			out := *output
			r.task.Output = &out
		}
		r.dispatch = nil
		return nil
	})
	return err
}

// Dispatch returns the live lease of a task, if any.
func (s *Service) Dispatch(ctx context.Context, taskID string) (*task.Dispatch, error) {
	r, err := s.records.Load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if r.dispatch.Expired(clock.Now()) {
		return nil, nil
	}
	return r.dispatch, nil
}
