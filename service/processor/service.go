package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/agent"
	"github.com/viant/gridagent/service/dao"
	"github.com/viant/gridagent/service/dao/tasks"
	"github.com/viant/gridagent/service/messaging"
	"github.com/viant/gridagent/service/precondition"
	"github.com/viant/gridagent/service/worker"
)

// errLeaseLost cancels the execution once another attempt took the dispatch over.
var errLeaseLost = errors.New("processor: dispatch lease lost")

// Channel is the control channel bound for the duration of one execution
type Channel interface {
	Address() string
	Start(ctx context.Context, handle agent.Handle) error
	Stop() error
}

// Service processes claimed tasks
type Service struct {
	tasks     tasks.Service
	channel   Channel
	worker    worker.Client
	ttl       time.Duration
	keepAlive time.Duration
}

// New creates a processor
func New(taskStore tasks.Service, channel Channel, client worker.Client, opts ...Option) *Service {
	s := &Service{tasks: taskStore, channel: channel, worker: client, ttl: precondition.DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	if s.keepAlive <= 0 {
		s.keepAlive = s.ttl / 2
	}
	return s
}

// Process executes claim on the worker and returns the status the task ended in.
// The message is marked processed once the outcome was recorded or the lease
// was taken over; any returned error leaves it for redelivery.
func (s *Service) Process(ctx context.Context, msg messaging.Message, claim *precondition.Claim, inputs protocol.Replies) (task.Status, error) {
	t, dispatch := claim.Task, claim.Dispatch
	if err := s.channel.Start(ctx, agent.Handle{SessionID: t.SessionID, TaskID: t.ID, DispatchID: dispatch.ID}); err != nil {
		s.Release(ctx, dispatch)
		return "", err
	}

	output, runErr := s.run(ctx, t, dispatch, inputs)
	if err := s.channel.Stop(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	switch {
	case errors.Is(runErr, errLeaseLost):
		log.Printf("processor: task %v dispatch %v: %v", t.ID, dispatch.ID, runErr)
		msg.SetStatus(messaging.StatusProcessed)
		return task.StatusDispatched, nil
	case runErr != nil:
		s.Release(ctx, dispatch)
		return "", runErr
	}

	status, result := task.StatusCompleted, &task.Output{Success: true}
	if !output.Ok {
		status, result = task.StatusError, &task.Output{Error: output.Error}
	}
	final, err := s.finalize(ctx, dispatch, status, result)
	if err != nil {
		if errors.Is(err, dao.ErrClaimConflict) {
			log.Printf("processor: task %v outcome dropped: %v", t.ID, err)
			msg.SetStatus(messaging.StatusProcessed)
			return task.StatusDispatched, nil
		}
		return "", err
	}
	msg.SetStatus(messaging.StatusProcessed)
	return final, nil
}

// run streams the task to the worker while extending the lease
func (s *Service) run(ctx context.Context, t *task.TaskData, dispatch *task.Dispatch, inputs protocol.Replies) (*protocol.Output, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if t.Options != nil && t.Options.MaxDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, t.Options.MaxDuration)
		defer stop()
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepLease(ctx, dispatch, done, cancel)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	header := &protocol.TaskHeader{
		SessionID:          t.SessionID,
		TaskID:             t.ID,
		DispatchID:         dispatch.ID,
		PayloadKey:         t.PayloadKey,
		DataDependencies:   t.DataDependencies,
		ExpectedOutputKeys: t.ExpectedOutputKeys,
		Options:            t.Options,
		AgentAddress:       s.channel.Address(),
	}
	if deadline, ok := ctx.Deadline(); ok {
		header.Deadline = &deadline
	}
	output, err := s.worker.Process(ctx, header, inputs)
	if cause := context.Cause(ctx); errors.Is(cause, errLeaseLost) {
		return nil, cause
	}
	if err != nil {
		return nil, fmt.Errorf("task %v: %w", t.ID, err)
	}
	if output == nil {
		return nil, fmt.Errorf("task %v: %w: empty output", t.ID, worker.ErrTransport)
	}
	return output, nil
}

func (s *Service) keepLease(ctx context.Context, dispatch *task.Dispatch, done chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.tasks.ExtendDispatch(ctx, dispatch, s.ttl); err != nil {
				if errors.Is(err, dao.ErrClaimConflict) {
					cancel(fmt.Errorf("%w: %v", errLeaseLost, err))
					return
				}
				log.Printf("processor: failed to extend dispatch %v: %v", dispatch.ID, err)
			}
		}
	}
}

// finalize records status; a cancellation requested meanwhile wins over the worker outcome
func (s *Service) finalize(ctx context.Context, dispatch *task.Dispatch, status task.Status, output *task.Output) (task.Status, error) {
	current, err := s.tasks.Read(ctx, dispatch.TaskID)
	if err != nil {
		return "", err
	}
	if current.Status == task.StatusCanceling {
		status = task.StatusCanceled
	}
	err = s.tasks.Finalize(ctx, dispatch, status, output)
	if errors.Is(err, task.ErrInvalidTransition) {
		if current, err = s.tasks.Read(ctx, dispatch.TaskID); err != nil {
			return "", err
		}
		switch {
		case current.Status == task.StatusCanceling:
			status = task.StatusCanceled
			err = s.tasks.Finalize(ctx, dispatch, status, output)
		case current.Status.IsTerminal():
			s.Release(ctx, dispatch)
			return current.Status, nil
		}
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// Release drops the lease of an attempt that will not run; failures are only logged.
func (s *Service) Release(ctx context.Context, dispatch *task.Dispatch) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.tasks.ReleaseDispatch(ctx, dispatch); err != nil {
		log.Printf("processor: failed to release dispatch %v: %v", dispatch.ID, err)
	}
}
