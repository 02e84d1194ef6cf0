package gridagent

import (
	"github.com/viant/afs"
	"github.com/viant/gridagent/progress"
	"github.com/viant/gridagent/service/dao/sessions"
	"github.com/viant/gridagent/service/dao/tasks"
	"github.com/viant/gridagent/service/messaging"
	"github.com/viant/gridagent/service/storage"
	"github.com/viant/gridagent/service/worker"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the agent service
type Option func(s *Service)

// WithQueue sets the message queue, overriding queue config
func WithQueue(queue messaging.Queue) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithTaskStore sets the task store
func WithTaskStore(store tasks.Service) Option {
	return func(s *Service) {
		s.tasks = store
	}
}

// WithSessionStore sets the session store
func WithSessionStore(store sessions.Service) Option {
	return func(s *Service) {
		s.sessions = store
	}
}

// WithObjectStore sets the object store, overriding storage config
func WithObjectStore(store storage.Service) Option {
	return func(s *Service) {
		s.objects = store
	}
}

// WithWorker sets the worker client, overriding worker config
func WithWorker(client worker.Client) Option {
	return func(s *Service) {
		s.worker = client
	}
}

// WithFileSystem sets the afs service used by fs backed queue and storage
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithShutdown sets the callback invoked when the pump stops
func WithShutdown(fn func()) Option {
	return func(s *Service) {
		s.shutdown = fn
	}
}

// WithProgressListener registers a callback receiving counters after every change
func WithProgressListener(fn func(progress.Counters)) Option {
	return func(s *Service) {
		s.onProgress = fn
	}
}

// WithTracingExporter installs a custom span exporter instead of the stdout one
func WithTracingExporter(exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.exporter = exporter
	}
}
