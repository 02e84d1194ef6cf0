package tasks

import (
	"context"

	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/dao/criteria"
)

// Cancel requests cancellation of one task.
func Cancel(ctx context.Context, store Service, id string) error {
	return store.UpdateStatus(ctx, id, task.StatusCanceling)
}

// CancelMatching requests cancellation of every non terminal task matching filter.
func CancelMatching(ctx context.Context, store Service, filter *criteria.TaskFilter) (int, error) {
	return store.UpdateStatuses(ctx, filter, task.StatusCanceling)
}

// FinalizeCreation submits a task once all of its inputs are uploaded.
func FinalizeCreation(ctx context.Context, store Service, id string) error {
	return store.UpdateStatus(ctx, id, task.StatusSubmitted)
}

// FinalizeCreationMatching submits every creating task matching filter.
func FinalizeCreationMatching(ctx context.Context, store Service, filter *criteria.TaskFilter) (int, error) {
	return store.UpdateStatuses(ctx, filter, task.StatusSubmitted)
}
