package task

import "time"

// Dispatch is a time bounded lease binding one execution attempt to a task.
type Dispatch struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the lease is no longer valid at now.
func (d *Dispatch) Expired(now time.Time) bool {
	return d == nil || !now.Before(d.ExpiresAt)
}
