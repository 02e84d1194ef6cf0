package memory

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/viant/gridagent/internal/idgen"
	"github.com/viant/gridagent/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	DeadLetter  bool
	QueueBuffer int
	// VisibilityTimeout bounds the lease of a pulled message; zero means no expiry.
	VisibilityTimeout time.Duration
	// PullWait is how long Pull waits for the first message.
	PullWait time.Duration
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		RetryDelay:        100 * time.Millisecond,
		DeadLetter:        true,
		QueueBuffer:       100,
		VisibilityTimeout: 5 * time.Minute,
		PullWait:          time.Second,
	}
}

type entry struct {
	id         string
	taskID     string
	retryCount int
}

// Message implements messaging.Message for the in-memory queue
type Message struct {
	entry  *entry
	queue  *Queue
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	status messaging.Status
	closed bool
}

func (m *Message) MessageID() string { return m.entry.id }

func (m *Message) TaskID() string { return m.entry.taskID }

func (m *Message) Context() context.Context { return m.ctx }

func (m *Message) SetStatus(status messaging.Status) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Message) Status() messaging.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Close applies the message status to the queue
func (m *Message) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return messaging.ErrAlreadyDisposed
	}
	m.closed = true
	m.cancel()

	switch m.status {
	case messaging.StatusProcessed:
		m.queue.processed(m.entry)
	case messaging.StatusPostponed:
		m.queue.enqueue(m.entry)
	default:
		m.queue.retry(m.entry)
	}
	return nil
}

// Queue implements an in-memory messaging.Queue
type Queue struct {
	messages  chan *entry
	config    Config
	dlq       []*entry
	completed int
	mu        sync.Mutex
}

// NewQueue creates a new in-memory queue
func NewQueue(config Config) *Queue {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue{
		messages: make(chan *entry, config.QueueBuffer),
		config:   config,
	}
}

// Init is a no-op for the memory queue
func (q *Queue) Init(context.Context) error { return nil }

// Publish adds a new message to the queue
func (q *Queue) Publish(ctx context.Context, taskID string) error {
	anEntry := &entry{id: idgen.New(), taskID: taskID}
	select {
	case q.messages <- anEntry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pull yields up to batchSize messages, waiting up to PullWait for the first one.
func (q *Queue) Pull(ctx context.Context, batchSize int) iter.Seq2[messaging.Message, error] {
	return func(yield func(messaging.Message, error) bool) {
		for i := 0; i < batchSize; i++ {
			var anEntry *entry
			if i == 0 {
				timer := time.NewTimer(q.config.PullWait)
				select {
				case anEntry = <-q.messages:
					timer.Stop()
				case <-timer.C:
					return
				case <-ctx.Done():
					timer.Stop()
					yield(nil, ctx.Err())
					return
				}
			} else {
				select {
				case anEntry = <-q.messages:
				default:
					return
				}
			}
			if !yield(q.lease(anEntry), nil) {
				return
			}
		}
	}
}

func (q *Queue) lease(anEntry *entry) *Message {
	var ctx context.Context
	var cancel context.CancelFunc
	if q.config.VisibilityTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), q.config.VisibilityTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	return &Message{entry: anEntry, queue: q, ctx: ctx, cancel: cancel}
}

// enqueue returns a postponed entry after RetryDelay without counting a retry.
func (q *Queue) enqueue(anEntry *entry) {
	time.AfterFunc(q.config.RetryDelay, func() { q.messages <- anEntry })
}

func (q *Queue) processed(*entry) {
	q.mu.Lock()
	q.completed++
	q.mu.Unlock()
}

func (q *Queue) retry(anEntry *entry) {
	retried := &entry{id: anEntry.id, taskID: anEntry.taskID, retryCount: anEntry.retryCount + 1}
	if retried.retryCount <= q.config.MaxRetries {
		time.AfterFunc(q.config.RetryDelay, func() { q.messages <- retried })
		return
	}
	if q.config.DeadLetter {
		q.mu.Lock()
		q.dlq = append(q.dlq, retried)
		q.mu.Unlock()
	}
}

// Size returns the current number of visible messages in the queue
func (q *Queue) Size() int {
	return len(q.messages)
}

// DLQSize returns the number of messages in the dead letter queue
func (q *Queue) DLQSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dlq)
}

// Completed returns the number of acknowledged messages
func (q *Queue) Completed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue = (*Queue)(nil)
