// Package pollster implements the message pump: it pulls task messages and
// drives every one of them through precondition check, prefetch and worker
// processing.
package pollster

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/progress"
	"github.com/viant/gridagent/service/messaging"
	"github.com/viant/gridagent/service/precondition"
	"github.com/viant/gridagent/service/prefetch"
	"github.com/viant/gridagent/service/processor"
	"github.com/viant/gridagent/tracing"
)

// ErrInvalidBatchSize is returned by New for a batch size below one.
var ErrInvalidBatchSize = errors.New("pollster: batch size must be at least 1")

// Service is the message pump
type Service struct {
	queue      messaging.Queue
	checker    *precondition.Service
	prefetcher *prefetch.Service
	processor  *processor.Service
	batchSize  int
	progress   *progress.Progress
	shutdown   func()
}

// Option customises the pump
type Option func(*Service)

// WithProgress sets the counters updated for every message
func WithProgress(tracker *progress.Progress) Option {
	return func(s *Service) {
		s.progress = tracker
	}
}

// WithShutdown sets the callback invoked whenever Run returns
func WithShutdown(fn func()) Option {
	return func(s *Service) {
		s.shutdown = fn
	}
}

// New creates a pump pulling batchSize messages at a time
func New(queue messaging.Queue, checker *precondition.Service, prefetcher *prefetch.Service, proc *processor.Service, batchSize int, opts ...Option) (*Service, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}
	s := &Service{
		queue:      queue,
		checker:    checker,
		prefetcher: prefetcher,
		processor:  proc,
		batchSize:  batchSize,
		progress:   progress.New("", nil),
		shutdown:   func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Progress returns the pump counters
func (s *Service) Progress() *progress.Progress { return s.progress }

// Run pulls and handles messages until ctx is cancelled. The first failure
// while handling a message stops the pump and is returned; the shutdown
// callback runs on every exit path.
func (s *Service) Run(ctx context.Context) (err error) {
	defer s.shutdown()
	defer func() {
		if err != nil {
			log.Printf("pollster: critical error, stopping: %v", err)
		}
	}()
	if err := s.queue.Init(ctx); err != nil {
		return fmt.Errorf("failed to init queue: %w", err)
	}
	ctx = progress.WithTracker(ctx, s.progress)
	for ctx.Err() == nil {
		for msg, err := range s.queue.Pull(ctx, s.batchSize) {
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				return fmt.Errorf("failed to pull messages: %w", err)
			}
			if err := s.handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					break
				}
				log.Printf("pollster: error processing message %v: %v", msg.MessageID(), err)
				return err
			}
		}
	}
	log.Printf("pollster: global cancellation requested, stopping")
	return nil
}

// handle processes msg under a scope cancelled by either the global context
// or the message lease, and disposes the message exactly once.
func (s *Service) handle(parent context.Context, msg messaging.Message) (err error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(msg.Context(), cancel)
	defer stop()
	defer func() {
		if closeErr := msg.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to dispose message %v: %w", msg.MessageID(), closeErr)
		}
	}()

	ctx, span := tracing.Start(ctx, tracing.StageMessage,
		tracing.MessageID.String(msg.MessageID()), tracing.TaskID.String(msg.TaskID()))
	err = s.process(ctx, msg)
	if err != nil && msg.Context().Err() != nil && parent.Err() == nil {
		err = fmt.Errorf("message %v lease expired: %w", msg.MessageID(), err)
	}
	span.End(err)
	return err
}

func (s *Service) process(ctx context.Context, msg messaging.Message) error {
	progress.UpdateCtx(ctx, progress.Delta{Pulled: 1})

	stageCtx, span := tracing.Start(ctx, tracing.StagePrecondition)
	claim, err := s.checker.Check(stageCtx, msg)
	if err != nil {
		span.End(err)
		progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
		return err
	}
	if claim == nil {
		if msg.Status() == messaging.StatusPostponed {
			span.Skip("requeued")
			progress.UpdateCtx(ctx, progress.Delta{Requeued: 1})
		} else {
			span.Skip("skipped")
			progress.UpdateCtx(ctx, progress.Delta{Skipped: 1})
		}
		span.End(nil)
		return nil
	}
	span.End(nil)

	stageCtx, span = tracing.Start(ctx, tracing.StagePrefetch)
	inputs, err := s.prefetcher.Prefetch(stageCtx, claim.Task)
	span.End(err)
	if err != nil {
		s.processor.Release(ctx, claim.Dispatch)
		progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
		return err
	}

	progress.UpdateCtx(ctx, progress.Delta{Dispatched: 1, Running: 1})
	stageCtx, span = tracing.Start(ctx, tracing.StageProcess, tracing.DispatchID.String(claim.Dispatch.ID))
	status, err := s.processor.Process(stageCtx, msg, claim, inputs)
	span.End(err)

	delta := progress.Delta{Running: -1}
	switch {
	case err != nil, status == task.StatusError, status == task.StatusCanceled:
		delta.Failed = 1
	case status == task.StatusCompleted:
		delta.Completed = 1
	}
	progress.UpdateCtx(ctx, delta)
	return err
}
