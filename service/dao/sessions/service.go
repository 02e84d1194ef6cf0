// Package sessions defines the session store contract.
package sessions

import (
	"context"
	"iter"

	"github.com/viant/gridagent/model/task"
)

// Service represents a session store
type Service interface {
	// Create registers a running session with its default task options.
	Create(ctx context.Context, sessionID, parentTaskID string, defaults *task.Options) error

	// Cancel moves a running session to cancelled. Cancelling twice fails with
	// dao.ErrAlreadyCancelled; an unknown session with dao.ErrNotFound.
	Cancel(ctx context.Context, sessionID string) error

	// Delete removes the session; dao.ErrNotFound if absent.
	Delete(ctx context.Context, sessionID string) error

	// List lazily yields every session id in no particular order.
	List(ctx context.Context) iter.Seq2[string, error]

	// IsCancelled reports the session state; dao.ErrNotFound if absent.
	IsCancelled(ctx context.Context, sessionID string) (bool, error)

	// DefaultOptions returns the session default task options.
	DefaultOptions(ctx context.Context, sessionID string) (*task.Options, error)
}
