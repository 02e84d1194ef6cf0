package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/gridagent/internal/clock"
	"github.com/viant/gridagent/internal/idgen"
	"github.com/viant/gridagent/service/messaging"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Record is the persisted form of a queue entry
type Record struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"taskId"`
	State     MessageState `json:"state"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`
}

// Message implements messaging.Message for the filesystem queue
type Message struct {
	record   *Record
	filename string
	queue    *Queue
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	status   messaging.Status
	closed   bool
}

func (m *Message) MessageID() string { return m.record.ID }

func (m *Message) TaskID() string { return m.record.TaskID }

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

// Close moves the message file out of the processing directory according to its status
func (m *Message) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return messaging.ErrAlreadyDisposed
	}
	m.closed = true
	m.cancel()
	return m.queue.dispose(context.Background(), m)
}

// Config holds configuration for filesystem queue
type Config struct {
	BasePath          string        // Base URL or directory for queue files
	MaxRetries        int           // Maximum number of retry attempts
	RetryDelay        time.Duration // Delay before a failed message is visible again
	VisibilityTimeout time.Duration // Lease of a pulled message; zero means no expiry
	PullWait          time.Duration // How long Pull waits for the first message
	PollInterval      time.Duration // How often Pull lists pending files while waiting
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:          "/tmp/gridagent/queue",
		MaxRetries:        3,
		RetryDelay:        time.Second,
		VisibilityTimeout: 5 * time.Minute,
		PullWait:          time.Second,
		PollInterval:      50 * time.Millisecond,
	}
}

// Queue implements a filesystem-based messaging.Queue
type Queue struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	completedDir  string
	failedDir     string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-based queue; call Init before use
func NewQueue(fs afs.Service, config Config) (*Queue, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Queue{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		completedDir:  path.Join(config.BasePath, "completed"),
		failedDir:     path.Join(config.BasePath, "failed"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
	}, nil
}

// Init ensures queue directories exist
func (q *Queue) Init(ctx context.Context) error {
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.failedDir, q.dlqDir} {
		exists, _ := q.fs.Exists(ctx, dir)
		if exists {
			continue
		}
		if err := q.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Publish adds a new message to the queue
func (q *Queue) Publish(ctx context.Context, taskID string) error {
	now := clock.Now()
	record := &Record{ID: idgen.New(), TaskID: taskID, State: MessageStatePending, CreatedAt: now, UpdatedAt: now}
	return q.write(ctx, path.Join(q.pendingDir, q.filename(record)), record)
}

// Pull yields up to batchSize messages, polling up to PullWait for the first one.
func (q *Queue) Pull(ctx context.Context, batchSize int) iter.Seq2[messaging.Message, error] {
	return func(yield func(messaging.Message, error) bool) {
		deadline := clock.Now().Add(q.config.PullWait)
		for i := 0; i < batchSize; i++ {
			msg, err := q.next(ctx)
			for err == nil && msg == nil && i == 0 && clock.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					yield(nil, ctx.Err())
					return
				case <-time.After(q.config.PollInterval):
				}
				msg, err = q.next(ctx)
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if msg == nil {
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// next claims the oldest visible message, retry candidates first
func (q *Queue) next(ctx context.Context) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, dir := range []string{q.failedDir, q.pendingDir} {
		objects, err := q.list(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			record, err := q.read(ctx, obj.URL())
			if err != nil {
				_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, "invalid-"+obj.Name()))
				continue
			}
			if dir == q.failedDir && clock.Now().Sub(record.UpdatedAt) < q.config.RetryDelay {
				continue
			}
			record.State = MessageStateProcessing
			record.UpdatedAt = clock.Now()
			if err := q.write(ctx, path.Join(q.processingDir, obj.Name()), record); err != nil {
				return nil, fmt.Errorf("failed to move message to processing directory: %w", err)
			}
			if err := q.fs.Delete(ctx, obj.URL()); err != nil {
				return nil, fmt.Errorf("failed to delete message from %s: %w", dir, err)
			}
			return q.lease(record, obj.Name()), nil
		}
	}
	return nil, nil
}

func (q *Queue) lease(record *Record, filename string) *Message {
	var ctx context.Context
	var cancel context.CancelFunc
	if q.config.VisibilityTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), q.config.VisibilityTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	return &Message{record: record, filename: filename, queue: q, ctx: ctx, cancel: cancel}
}

// dispose moves a message from processing according to its status
func (q *Queue) dispose(ctx context.Context, m *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	record := *m.record
	record.UpdatedAt = clock.Now()
	var dest string
	switch m.status {
	case messaging.StatusProcessed:
		record.State = MessageStateCompleted
		dest = path.Join(q.completedDir, m.filename)
	case messaging.StatusPostponed:
		record.State = MessageStatePending
		dest = path.Join(q.pendingDir, q.filename(&record))
	default:
		record.Retries++
		record.State = MessageStateFailed
		dest = path.Join(q.failedDir, m.filename)
		if record.Retries > q.config.MaxRetries {
			dest = path.Join(q.dlqDir, m.filename)
		}
	}
	if err := q.write(ctx, dest, &record); err != nil {
		return fmt.Errorf("failed to write message %v: %w", record.ID, err)
	}
	processingPath := path.Join(q.processingDir, m.filename)
	if exists, _ := q.fs.Exists(ctx, processingPath); exists {
		if err := q.fs.Delete(ctx, processingPath); err != nil {
			return fmt.Errorf("failed to delete message from processing directory: %w", err)
		}
	}
	return nil
}

// filename orders files by creation time so listing yields FIFO order
func (q *Queue) filename(record *Record) string {
	return fmt.Sprintf("%020d-%s.json", clock.Now().UnixNano(), record.ID)
}

func (q *Queue) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			files = append(files, obj)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	return files, nil
}

func (q *Queue) write(ctx context.Context, URL string, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue) read(ctx context.Context, URL string) (*Record, error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return &record, nil
}

// Count returns the number of message files in the given state directory
func (q *Queue) Count(ctx context.Context, state MessageState) (int, error) {
	dir := map[MessageState]string{
		MessageStatePending:    q.pendingDir,
		MessageStateProcessing: q.processingDir,
		MessageStateCompleted:  q.completedDir,
		MessageStateFailed:     q.failedDir,
	}[state]
	if dir == "" {
		dir = q.dlqDir
	}
	files, err := q.list(ctx, dir)
	return len(files), err
}

var _ messaging.Queue = (*Queue)(nil)
