package task

import (
	"time"
)

// Options holds per-task execution options; session defaults apply when a task has none.
type Options struct {
	MaxDuration time.Duration     `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
	MaxRetries  int               `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	Priority    int               `json:"priority,omitempty" yaml:"priority,omitempty"`
	Options     map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Output records how an execution attempt ended
type Output struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// TaskData represents a task as seen by the execution agent
type TaskData struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Status    Status `json:"status"`
	// Dependencies are ids of tasks that must be completed first.
	Dependencies []string `json:"dependencies,omitempty"`
	// DataDependencies are object keys streamed to the worker before execution.
	DataDependencies []string `json:"dataDependencies,omitempty"`
	// ExpectedOutputKeys are object keys the worker is expected to produce.
	ExpectedOutputKeys  []string   `json:"expectedOutputKeys,omitempty"`
	PayloadKey          string     `json:"payloadKey,omitempty"`
	DispatchID          string     `json:"dispatchId,omitempty"`
	AncestorDispatchIDs []string   `json:"ancestorDispatchIds,omitempty"`
	Options             *Options   `json:"options,omitempty"`
	Output              *Output    `json:"output,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	EndedAt             *time.Time `json:"endedAt,omitempty"`
}

// Clone returns a copy safe to mutate
func (t *TaskData) Clone() *TaskData {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Dependencies = append([]string(nil), t.Dependencies...)
	clone.DataDependencies = append([]string(nil), t.DataDependencies...)
	clone.ExpectedOutputKeys = append([]string(nil), t.ExpectedOutputKeys...)
	clone.AncestorDispatchIDs = append([]string(nil), t.AncestorDispatchIDs...)
	if t.Options != nil {
		options := *t.Options
		if t.Options.Options != nil {
			options.Options = make(map[string]string, len(t.Options.Options))
			for k, v := range t.Options.Options {
				options.Options[k] = v
			}
		}
		clone.Options = &options
	}
	if t.Output != nil {
		output := *t.Output
		clone.Output = &output
	}
	return &clone
}

// HasAncestorDispatch returns true if the task was created under the supplied dispatch
func (t *TaskData) HasAncestorDispatch(dispatchID string) bool {
	if t.DispatchID == dispatchID {
		return true
	}
	for _, candidate := range t.AncestorDispatchIDs {
		if candidate == dispatchID {
			return true
		}
	}
	return false
}
