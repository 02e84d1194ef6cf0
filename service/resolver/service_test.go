package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/dao"
	"github.com/viant/gridagent/service/dao/tasks/memory"
)

func newStore(t *testing.T, items ...*task.TaskData) *memory.Service {
	t.Helper()
	store := memory.New()
	for _, item := range items {
		assert.NoError(t, store.Create(context.Background(), item))
	}
	return store
}

func TestService_IsSatisfied(t *testing.T) {
	testCases := []struct {
		description string
		tasks       []*task.TaskData
		target      *task.TaskData
		expected    bool
	}{
		{
			description: "no dependencies completed",
			target:      &task.TaskData{ID: "t1", Status: task.StatusCompleted},
			expected:    true,
		},
		{
			description: "no dependencies submitted",
			target:      &task.TaskData{ID: "t1", Status: task.StatusSubmitted},
			expected:    false,
		},
		{
			description: "direct dependency completed",
			tasks:       []*task.TaskData{{ID: "t0", Status: task.StatusCompleted}},
			target:      &task.TaskData{ID: "t1", Status: task.StatusSubmitted, Dependencies: []string{"t0"}},
			expected:    true,
		},
		{
			description: "direct dependency dispatched",
			tasks:       []*task.TaskData{{ID: "t0", Status: task.StatusDispatched}},
			target:      &task.TaskData{ID: "t1", Status: task.StatusSubmitted, Dependencies: []string{"t0"}},
			expected:    false,
		},
		{
			description: "transitive dependency failed",
			tasks: []*task.TaskData{
				{ID: "a", Status: task.StatusError},
				{ID: "b", Status: task.StatusCompleted, Dependencies: []string{"a"}},
				{ID: "c", Status: task.StatusCompleted},
			},
			target:   &task.TaskData{ID: "t1", Status: task.StatusSubmitted, Dependencies: []string{"b", "c"}},
			expected: false,
		},
		{
			description: "diamond completed",
			tasks: []*task.TaskData{
				{ID: "a", Status: task.StatusCompleted},
				{ID: "b", Status: task.StatusCompleted, Dependencies: []string{"a"}},
				{ID: "c", Status: task.StatusCompleted, Dependencies: []string{"a"}},
			},
			target:   &task.TaskData{ID: "t1", Status: task.StatusSubmitted, Dependencies: []string{"b", "c"}},
			expected: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			srv := New(newStore(t, testCase.tasks...), WithMaxConcurrency(2))
			actual, err := srv.IsSatisfied(context.Background(), testCase.target)
			assert.NoError(t, err)
			assert.Equal(t, testCase.expected, actual)
		})
	}
}

func TestService_IsSatisfied_MissingDependency(t *testing.T) {
	srv := New(newStore(t))
	_, err := srv.IsSatisfied(context.Background(), &task.TaskData{ID: "t1", Dependencies: []string{"ghost"}})
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

// slowReader blocks reads of slow until the lookup is cancelled. Reads of
// other ids wait until slow is in flight when started is set.
type slowReader struct {
	Reader
	started   chan struct{}
	cancelled atomic.Bool
	returned  atomic.Bool
}

func (r *slowReader) Read(ctx context.Context, id string) (*task.TaskData, error) {
	if id != "slow" {
		if r.started != nil {
			select {
			case <-r.started:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return r.Reader.Read(ctx, id)
	}
	defer r.returned.Store(true)
	if r.started != nil {
		close(r.started)
	}
	select {
	case <-ctx.Done():
		r.cancelled.Store(true)
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return &task.TaskData{ID: "slow", Status: task.StatusCompleted}, nil
	}
}

func TestService_IsSatisfied_ShortCircuit(t *testing.T) {
	reader := &slowReader{
		Reader:  newStore(t, &task.TaskData{ID: "failed", Status: task.StatusError}),
		started: make(chan struct{}),
	}
	srv := New(reader)

	started := time.Now()
	actual, err := srv.IsSatisfied(context.Background(), &task.TaskData{
		ID:           "t1",
		Status:       task.StatusSubmitted,
		Dependencies: []string{"slow", "failed"},
	})
	assert.NoError(t, err)
	assert.False(t, actual)
	assert.Less(t, time.Since(started), time.Second)
	assert.True(t, reader.cancelled.Load())
	assert.True(t, reader.returned.Load())
}

func TestService_IsSatisfied_Cancelled(t *testing.T) {
	reader := &slowReader{Reader: newStore(t)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := New(reader).IsSatisfied(ctx, &task.TaskData{ID: "t1", Dependencies: []string{"slow"}})
	assert.ErrorIs(t, err, context.Canceled)
}
