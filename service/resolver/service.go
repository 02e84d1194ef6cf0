// Package resolver decides whether the transitive dependencies of a task are completed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/gridagent/model/task"
	"golang.org/x/sync/errgroup"
)

// errUnsatisfied stops the fan-out once any dependency is found not completed.
var errUnsatisfied = errors.New("resolver: dependency unsatisfied")

// Reader reads tasks by id
type Reader interface {
	Read(ctx context.Context, id string) (*task.TaskData, error)
}

// Service resolves task dependencies
type Service struct {
	tasks          Reader
	maxConcurrency int
}

// Option customises the resolver
type Option func(*Service)

// WithMaxConcurrency bounds the number of concurrent lookups per dependency level.
func WithMaxConcurrency(limit int) Option {
	return func(s *Service) {
		s.maxConcurrency = limit
	}
}

// New creates a resolver reading tasks from store
func New(store Reader, opts ...Option) *Service {
	s := &Service{tasks: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsSatisfied returns true when every transitive dependency of t is completed.
// A task without dependencies is satisfied only when it is completed itself.
// The first negative answer cancels the sibling lookups, which are awaited
// before returning.
func (s *Service) IsSatisfied(ctx context.Context, t *task.TaskData) (bool, error) {
	err := s.resolve(ctx, t, &sync.Map{})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errUnsatisfied):
		return false, nil
	}
	return false, err
}

func (s *Service) resolve(ctx context.Context, t *task.TaskData, visited *sync.Map) error {
	if _, seen := visited.LoadOrStore(t.ID, true); seen {
		return nil
	}
	if len(t.Dependencies) == 0 {
		if t.Status != task.StatusCompleted {
			return errUnsatisfied
		}
		return nil
	}
	group, groupCtx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		group.SetLimit(s.maxConcurrency)
	}
	for _, id := range t.Dependencies {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			dependency, err := s.tasks.Read(groupCtx, id)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				return fmt.Errorf("failed to read dependency %v of %v: %w", id, t.ID, err)
			}
			if dependency.Status != task.StatusCompleted {
				return errUnsatisfied
			}
			return s.resolve(groupCtx, dependency, visited)
		})
	}
	return group.Wait()
}
