package pollster

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/agent"
	"github.com/viant/gridagent/service/codec"
	"github.com/viant/gridagent/service/dao"
	sessionmemory "github.com/viant/gridagent/service/dao/sessions/memory"
	taskmemory "github.com/viant/gridagent/service/dao/tasks/memory"
	"github.com/viant/gridagent/service/messaging/memory"
	"github.com/viant/gridagent/service/precondition"
	"github.com/viant/gridagent/service/prefetch"
	"github.com/viant/gridagent/service/processor"
	"github.com/viant/gridagent/service/resolver"
	storagememory "github.com/viant/gridagent/service/storage/memory"
	"github.com/viant/gridagent/service/worker"
)

type fixture struct {
	tasks    *taskmemory.Service
	sessions *sessionmemory.Service
	objects  *storagememory.Service
	queue    *memory.Queue
	pump     *Service
	shutdown atomic.Int32
}

func newFixture(t *testing.T, client worker.Client, queueOptions ...func(*memory.Config)) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		tasks:    taskmemory.New(),
		sessions: sessionmemory.New(),
		objects:  storagememory.New(0),
	}
	config := memory.DefaultConfig()
	config.PullWait = 10 * time.Millisecond
	config.RetryDelay = time.Millisecond
	for _, option := range queueOptions {
		option(&config)
	}
	f.queue = memory.NewQueue(config)
	assert.NoError(t, f.sessions.Create(ctx, "s1", "", nil))

	channel := agent.New(filepath.Join(t.TempDir(), "agent.sock"), f.objects)
	assert.NoError(t, channel.Listen(ctx))
	t.Cleanup(func() { _ = channel.Close() })

	checker := precondition.New(f.tasks, f.sessions, resolver.New(f.tasks), time.Minute)
	pump, err := New(f.queue, checker, prefetch.New(f.objects), processor.New(f.tasks, channel, client), 2,
		WithShutdown(func() { f.shutdown.Add(1) }))
	assert.NoError(t, err)
	f.pump = pump
	return f
}

func (f *fixture) status(id string) task.Status {
	t, err := f.tasks.Read(context.Background(), id)
	if err != nil {
		return ""
	}
	return t.Status
}

func echo() worker.Client {
	return worker.Func(func(ctx context.Context, header *protocol.TaskHeader, inputs protocol.Replies) (*protocol.Output, error) {
		for range header.DataDependencies {
			if _, err := codec.Collect(ctx, inputs); err != nil {
				return &protocol.Output{Error: err.Error()}, nil
			}
		}
		return &protocol.Output{Ok: true}, nil
	})
}

func TestNew_BatchSize(t *testing.T) {
	_, err := New(memory.NewQueue(memory.DefaultConfig()), nil, nil, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestService_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, echo())
	f.objects.Set("k0", []byte("AB"), []byte("CD"))
	assert.NoError(t, f.tasks.Create(ctx, &task.TaskData{ID: "t0", SessionID: "s1", Status: task.StatusSubmitted, DataDependencies: []string{"k0"}}))
	assert.NoError(t, f.tasks.Create(ctx, &task.TaskData{ID: "t1", SessionID: "s1", Status: task.StatusSubmitted, Dependencies: []string{"t0"}}))
	assert.NoError(t, f.tasks.Create(ctx, &task.TaskData{ID: "t2", SessionID: "s1", Status: task.StatusCompleted}))
	assert.NoError(t, f.queue.Publish(ctx, "t1"))
	assert.NoError(t, f.queue.Publish(ctx, "t2"))
	assert.NoError(t, f.queue.Publish(ctx, "t0"))

	done := make(chan error, 1)
	go func() { done <- f.pump.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return f.status("t0") == task.StatusCompleted && f.status("t1") == task.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pump did not stop")
	}
	assert.EqualValues(t, 1, f.shutdown.Load())

	counters := f.pump.Progress().Snapshot()
	assert.Equal(t, 2, counters.Completed)
	assert.Equal(t, 2, counters.Dispatched)
	assert.GreaterOrEqual(t, counters.Requeued, 1)
	assert.Equal(t, 1, counters.Skipped)
	assert.Equal(t, 0, counters.Running)
	assert.Equal(t, 3, f.queue.Completed())
}

func TestService_Run_FailFast(t *testing.T) {
	f := newFixture(t, echo())
	ctx := context.Background()
	assert.NoError(t, f.queue.Publish(ctx, "ghost"))
	assert.NoError(t, f.tasks.Create(ctx, &task.TaskData{ID: "t1", SessionID: "s1", Status: task.StatusSubmitted}))
	assert.NoError(t, f.queue.Publish(ctx, "t1"))

	err := f.pump.Run(ctx)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	assert.EqualValues(t, 1, f.shutdown.Load())
	assert.Equal(t, task.StatusSubmitted, f.status("t1"))
}

func TestService_Run_WorkerTransport(t *testing.T) {
	f := newFixture(t, worker.Func(func(context.Context, *protocol.TaskHeader, protocol.Replies) (*protocol.Output, error) {
		return nil, worker.ErrTransport
	}))
	ctx := context.Background()
	assert.NoError(t, f.tasks.Create(ctx, &task.TaskData{ID: "t1", SessionID: "s1", Status: task.StatusSubmitted}))
	assert.NoError(t, f.queue.Publish(ctx, "t1"))

	err := f.pump.Run(ctx)
	assert.ErrorIs(t, err, worker.ErrTransport)
	assert.Equal(t, 1, f.pump.Progress().Snapshot().Failed)

	live, err := f.tasks.Dispatch(ctx, "t1")
	assert.NoError(t, err)
	assert.Nil(t, live)
}

func TestService_Run_MissingInput(t *testing.T) {
	f := newFixture(t, echo())
	ctx := context.Background()
	assert.NoError(t, f.tasks.Create(ctx, &task.TaskData{ID: "t1", SessionID: "s1", Status: task.StatusSubmitted, DataDependencies: []string{"absent"}}))
	assert.NoError(t, f.queue.Publish(ctx, "t1"))

	err := f.pump.Run(ctx)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	live, err := f.tasks.Dispatch(ctx, "t1")
	assert.NoError(t, err)
	assert.Nil(t, live)
}

func TestService_Run_LeaseExpired(t *testing.T) {
	var aborted atomic.Bool
	blocking := worker.Func(func(ctx context.Context, header *protocol.TaskHeader, inputs protocol.Replies) (*protocol.Output, error) {
		<-ctx.Done()
		aborted.Store(true)
		return nil, ctx.Err()
	})
	f := newFixture(t, blocking, func(config *memory.Config) {
		config.VisibilityTimeout = 50 * time.Millisecond
		config.MaxRetries = 0
	})
	ctx := context.Background()
	assert.NoError(t, f.tasks.Create(ctx, &task.TaskData{ID: "t1", SessionID: "s1", Status: task.StatusSubmitted}))
	assert.NoError(t, f.queue.Publish(ctx, "t1"))

	done := make(chan error, 1)
	go func() { done <- f.pump.Run(ctx) }()
	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pump did not stop")
	}
	if !assert.Error(t, err) {
		return
	}
	assert.Contains(t, err.Error(), "lease expired")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, aborted.Load())
	assert.EqualValues(t, 1, f.shutdown.Load())
	assert.Equal(t, 1, f.queue.DLQSize())

	live, err := f.tasks.Dispatch(ctx, "t1")
	assert.NoError(t, err)
	assert.Nil(t, live)
}
