package criteria

import (
	"errors"
	"fmt"

	"github.com/viant/gridagent/model/task"
)

// ErrInvalidFilter is returned by Validate for filters that cannot be evaluated.
var ErrInvalidFilter = errors.New("criteria: invalid task filter")

// TaskFilter selects tasks by exactly one id kind (dispatch, task or session)
// and optionally by either included or excluded statuses.
type TaskFilter struct {
	DispatchIDs []string      `json:"dispatchIds,omitempty"`
	TaskIDs     []string      `json:"taskIds,omitempty"`
	SessionIDs  []string      `json:"sessionIds,omitempty"`
	Included    []task.Status `json:"included,omitempty"`
	Excluded    []task.Status `json:"excluded,omitempty"`
}

// ByDispatch selects tasks created under any of the dispatch ids.
func ByDispatch(ids ...string) *TaskFilter { return &TaskFilter{DispatchIDs: ids} }

// ByTask selects tasks by id.
func ByTask(ids ...string) *TaskFilter { return &TaskFilter{TaskIDs: ids} }

// BySession selects tasks owned by any of the sessions.
func BySession(ids ...string) *TaskFilter { return &TaskFilter{SessionIDs: ids} }

// Including restricts the filter to the given statuses.
func (f *TaskFilter) Including(statuses ...task.Status) *TaskFilter {
	f.Included = append(f.Included, statuses...)
	return f
}

// Excluding removes the given statuses from the selection.
func (f *TaskFilter) Excluding(statuses ...task.Status) *TaskFilter {
	f.Excluded = append(f.Excluded, statuses...)
	return f
}

// Validate rejects filters without an id kind, with more than one id kind,
// or with both included and excluded statuses.
func (f *TaskFilter) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil filter", ErrInvalidFilter)
	}
	kinds := 0
	for _, ids := range [][]string{f.DispatchIDs, f.TaskIDs, f.SessionIDs} {
		if len(ids) > 0 {
			kinds++
		}
	}
	switch kinds {
	case 0:
		return fmt.Errorf("%w: one of dispatch, task or session ids is required", ErrInvalidFilter)
	case 1:
	default:
		return fmt.Errorf("%w: only one of dispatch, task or session ids can be set", ErrInvalidFilter)
	}
	if len(f.Included) > 0 && len(f.Excluded) > 0 {
		return fmt.Errorf("%w: statuses must be either included or excluded", ErrInvalidFilter)
	}
	return nil
}

// Match reports whether t is selected. The filter is expected to be valid.
func (f *TaskFilter) Match(t *task.TaskData) bool {
	switch {
	case len(f.DispatchIDs) > 0:
		if !anyOf(f.DispatchIDs, t.HasAncestorDispatch) {
			return false
		}
	case len(f.TaskIDs) > 0:
		if !contains(f.TaskIDs, t.ID) {
			return false
		}
	case len(f.SessionIDs) > 0:
		if !contains(f.SessionIDs, t.SessionID) {
			return false
		}
	}
	if len(f.Included) > 0 {
		return contains(f.Included, t.Status)
	}
	if len(f.Excluded) > 0 {
		return !contains(f.Excluded, t.Status)
	}
	return true
}

func contains[T comparable](values []T, candidate T) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}

func anyOf(values []string, fn func(string) bool) bool {
	for _, value := range values {
		if fn(value) {
			return true
		}
	}
	return false
}
