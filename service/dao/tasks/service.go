// Package tasks defines the task store contract used by the agent. The store
// owns TaskData; the agent only reads tasks and moves them through the
// status state machine. Dispatch claims are compare-and-set operations:
// under concurrent claims exactly one attempt wins.
package tasks

import (
	"context"
	"time"

	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/dao/criteria"
)

// Service represents a task store
type Service interface {
	// Create registers a new task.
	Create(ctx context.Context, t *task.TaskData) error

	// Read returns the task or an error wrapping dao.ErrNotFound.
	Read(ctx context.Context, id string) (*task.TaskData, error)

	// UpdateStatus moves one task to status, validated by the transition table.
	UpdateStatus(ctx context.Context, id string, status task.Status) error

	// UpdateStatuses moves every task matching filter to status and returns how
	// many changed. Tasks for which the transition is invalid are skipped.
	UpdateStatuses(ctx context.Context, filter *criteria.TaskFilter, status task.Status) (int, error)

	// AcquireDispatch claims the task for one execution attempt. It fails with
	// dao.ErrClaimConflict while another live lease exists.
	AcquireDispatch(ctx context.Context, taskID string, ttl time.Duration) (*task.Dispatch, error)

	// ExtendDispatch pushes the lease expiry; dao.ErrClaimConflict once the lease was lost.
	ExtendDispatch(ctx context.Context, dispatch *task.Dispatch, ttl time.Duration) (*task.Dispatch, error)

	// ReleaseDispatch drops the lease if still held by dispatch.
	ReleaseDispatch(ctx context.Context, dispatch *task.Dispatch) error

	// Finalize records the attempt outcome, moves the task to status and releases
	// the lease in one step; dao.ErrClaimConflict if dispatch no longer holds the task.
	Finalize(ctx context.Context, dispatch *task.Dispatch, status task.Status, output *task.Output) error
}
