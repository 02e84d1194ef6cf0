package messaging

import (
	"context"
	"errors"
	"iter"
)

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	VendorMemory Vendor = "memory"
	VendorFs     Vendor = "fs"
)

// ErrAlreadyDisposed is returned by a second Close of the same message.
var ErrAlreadyDisposed = errors.New("messaging: message already disposed")

// Status decides what Close does with the underlying queue entry.
type Status int

const (
	// StatusFailed releases the entry for redelivery, subject to retry limits
	// and dead lettering. It is the status of a message nobody handled.
	StatusFailed Status = iota
	// StatusProcessed acknowledges and removes the entry.
	StatusProcessed
	// StatusPostponed puts the entry back to the queue without counting a retry.
	StatusPostponed
)

func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusPostponed:
		return "postponed"
	}
	return "failed"
}

// Queue represents the task message queue
type Queue interface {
	// Init prepares the backing storage.
	Init(ctx context.Context) error

	// Publish enqueues a message referencing taskID.
	Publish(ctx context.Context, taskID string) error

	// Pull lazily yields at most batchSize messages. The sequence is finite; it may
	// wait for the first message and never takes more entries than were consumed.
	Pull(ctx context.Context, batchSize int) iter.Seq2[Message, error]
}

// Message represents a leased queue entry
type Message interface {
	MessageID() string

	TaskID() string

	// Context is cancelled when the lease expires or the message is closed.
	Context() context.Context

	// SetStatus records what Close should do with the entry.
	SetStatus(status Status)

	Status() Status

	// Close applies the status to the queue entry. It must be called exactly once
	// per message; later calls return ErrAlreadyDisposed.
	Close() error
}
