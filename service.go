package gridagent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/viant/afs"
	"github.com/viant/gridagent/internal/idgen"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/progress"
	"github.com/viant/gridagent/service/agent"
	"github.com/viant/gridagent/service/dao/criteria"
	"github.com/viant/gridagent/service/dao/sessions"
	smemory "github.com/viant/gridagent/service/dao/sessions/memory"
	"github.com/viant/gridagent/service/dao/tasks"
	tmemory "github.com/viant/gridagent/service/dao/tasks/memory"
	"github.com/viant/gridagent/service/messaging"
	mfs "github.com/viant/gridagent/service/messaging/fs"
	mmemory "github.com/viant/gridagent/service/messaging/memory"
	"github.com/viant/gridagent/service/pollster"
	"github.com/viant/gridagent/service/precondition"
	"github.com/viant/gridagent/service/prefetch"
	"github.com/viant/gridagent/service/processor"
	"github.com/viant/gridagent/service/resolver"
	"github.com/viant/gridagent/service/storage"
	sfs "github.com/viant/gridagent/service/storage/fs"
	smem "github.com/viant/gridagent/service/storage/memory"
	"github.com/viant/gridagent/service/worker"
	"github.com/viant/gridagent/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Service wires the agent: stores, queue, control channel, worker client and pump.
type Service struct {
	config     *Config
	fs         afs.Service
	queue      messaging.Queue
	tasks      tasks.Service
	sessions   sessions.Service
	objects    storage.Service
	worker     worker.Client
	channel    *agent.Server
	pump       *pollster.Service
	progress   *progress.Progress
	shutdown   func()
	onProgress func(progress.Counters)
	exporter   sdktrace.SpanExporter
}

// New creates the agent from config; nil config means DefaultConfig.
func New(config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Service{config: config, shutdown: func() {}}
	for _, option := range options {
		option(s)
	}
	if err := s.ensureBaseSetup(); err != nil {
		return nil, err
	}
	s.channel = agent.New(config.Agent.Address, s.objects)
	checker := precondition.New(s.tasks, s.sessions,
		resolver.New(s.tasks, resolver.WithMaxConcurrency(config.Resolver.MaxConcurrency)),
		config.Dispatch.TTL)
	proc := processor.New(s.tasks, s.channel, s.worker, processor.WithTTL(config.Dispatch.TTL))
	s.progress = progress.New(idgen.New(), s.onProgress)
	pump, err := pollster.New(s.queue, checker, prefetch.New(s.objects), proc, config.Pollster.BatchSize,
		pollster.WithProgress(s.progress),
		pollster.WithShutdown(s.shutdown))
	if err != nil {
		return nil, err
	}
	s.pump = pump
	return s, nil
}

func (s *Service) ensureBaseSetup() error {
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.tasks == nil {
		s.tasks = tmemory.New()
	}
	if s.sessions == nil {
		s.sessions = smemory.New()
	}
	if s.objects == nil {
		if s.config.Storage.BaseURL == "" {
			s.objects = smem.New(s.config.Storage.ChunkSize)
		} else {
			s.objects = sfs.New(s.fs, s.config.Storage.BaseURL, s.config.Storage.ChunkSize)
		}
	}
	if s.worker == nil {
		if s.config.Worker.Address == "" {
			return fmt.Errorf("%w: worker.address is required without a custom worker", ErrInvalidConfig)
		}
		s.worker = worker.NewSocket(s.config.Worker.Address, s.config.Worker.Timeout)
	}
	if s.queue == nil {
		queue, err := s.newQueue()
		if err != nil {
			return err
		}
		s.queue = queue
	}
	return nil
}

func (s *Service) newQueue() (messaging.Queue, error) {
	cfg := s.config.Queue
	switch cfg.Vendor {
	case messaging.VendorFs:
		config := mfs.DefaultConfig()
		config.BasePath = cfg.BasePath
		config.MaxRetries = cfg.MaxRetries
		config.RetryDelay = cfg.RetryDelay
		config.VisibilityTimeout = cfg.VisibilityTimeout
		config.PullWait = cfg.PullWait
		return mfs.NewQueue(s.fs, config)
	default:
		config := mmemory.DefaultConfig()
		config.MaxRetries = cfg.MaxRetries
		config.RetryDelay = cfg.RetryDelay
		config.VisibilityTimeout = cfg.VisibilityTimeout
		config.PullWait = cfg.PullWait
		return mmemory.NewQueue(config), nil
	}
}

// Run binds the control channel, checks the worker and pumps messages until
// ctx is cancelled or a message fails.
func (s *Service) Run(ctx context.Context) (err error) {
	if s.config.Tracing.Enabled {
		provider, setupErr := tracing.Setup(ctx, tracing.Settings{
			ServiceName: s.config.Tracing.ServiceName,
			Version:     s.config.Tracing.Version,
			OutputFile:  s.config.Tracing.OutputFile,
			Exporter:    s.exporter,
		})
		if setupErr != nil {
			return fmt.Errorf("failed to init tracing: %w", setupErr)
		}
		defer func() { err = errors.Join(err, provider.Shutdown(context.WithoutCancel(ctx))) }()
	}
	if err := s.channel.Listen(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := s.channel.Close(); closeErr != nil {
			log.Printf("gridagent: failed to close control channel: %v", closeErr)
		}
	}()
	if err := s.worker.Check(ctx); err != nil {
		return fmt.Errorf("worker unavailable: %w", err)
	}
	return s.pump.Run(ctx)
}

// Submit registers a task as submitted and publishes its message.
func (s *Service) Submit(ctx context.Context, t *task.TaskData) error {
	if t.Options == nil && t.SessionID != "" {
		defaults, err := s.sessions.DefaultOptions(ctx, t.SessionID)
		if err != nil {
			return err
		}
		t.Options = defaults
	}
	if t.Status == "" {
		t.Status = task.StatusSubmitted
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return err
	}
	return s.queue.Publish(ctx, t.ID)
}

// CancelSession cancels the session and requests cancellation of its tasks.
func (s *Service) CancelSession(ctx context.Context, sessionID string) (int, error) {
	if err := s.sessions.Cancel(ctx, sessionID); err != nil {
		return 0, err
	}
	return tasks.CancelMatching(ctx, s.tasks, criteria.BySession(sessionID).Excluding(task.StatusCompleted, task.StatusError, task.StatusCanceled))
}

// Config returns the agent config
func (s *Service) Config() *Config { return s.config }

// Tasks returns the task store
func (s *Service) Tasks() tasks.Service { return s.tasks }

// Sessions returns the session store
func (s *Service) Sessions() sessions.Service { return s.sessions }

// Objects returns the object store
func (s *Service) Objects() storage.Service { return s.objects }

// Queue returns the message queue
func (s *Service) Queue() messaging.Queue { return s.queue }

// Progress returns the pump counters
func (s *Service) Progress() *progress.Progress { return s.progress }
