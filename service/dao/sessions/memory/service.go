package memory

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/viant/gridagent/internal/clock"
	"github.com/viant/gridagent/model/session"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/dao"
	"github.com/viant/gridagent/service/dao/sessions"
	"github.com/viant/gridagent/service/dao/store"
)

// Service implements an in-memory session store
type Service struct {
	records *store.MemoryStore[string, session.SessionData]
}

var _ sessions.Service = (*Service)(nil)

func cloneSession(s *session.SessionData) *session.SessionData {
	clone := *s
	if s.DefaultOptions != nil {
		options := *s.DefaultOptions
		clone.DefaultOptions = &options
	}
	return &clone
}

// New creates an empty store
func New() *Service {
	return &Service{records: store.NewMemoryStore[string, session.SessionData](
		func(s *session.SessionData) string { return s.ID },
		cloneSession,
	)}
}

func (s *Service) Create(ctx context.Context, sessionID, parentTaskID string, defaults *task.Options) error {
	if sessionID == "" {
		return dao.ErrInvalidID
	}
	return s.records.Create(ctx, &session.SessionData{
		ID:             sessionID,
		ParentTaskID:   parentTaskID,
		Status:         session.StatusRunning,
		DefaultOptions: defaults,
		CreatedAt:      clock.Now(),
	})
}

func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	_, err := s.records.Update(ctx, sessionID, func(data *session.SessionData) error {
		if data.IsCancelled() {
			return fmt.Errorf("%w: %v", dao.ErrAlreadyCancelled, sessionID)
		}
		if err := data.Status.Transition(session.StatusCancelled); err != nil {
			return err
		}
		now := clock.Now()
		data.Status = session.StatusCancelled
		data.CancelledAt = &now
		return nil
	})
	if err != nil && errors.Is(err, dao.ErrNotFound) {
		return fmt.Errorf("session: %w", err)
	}
	return err
}

func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := s.records.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context) iter.Seq2[string, error] {
	return s.records.Keys(ctx)
}

func (s *Service) IsCancelled(ctx context.Context, sessionID string) (bool, error) {
	data, err := s.records.Load(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("session: %w", err)
	}
	return data.IsCancelled(), nil
}

func (s *Service) DefaultOptions(ctx context.Context, sessionID string) (*task.Options, error) {
	data, err := s.records.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return data.DefaultOptions, nil
}
