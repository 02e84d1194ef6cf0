package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the pump.
type Delta struct {
	Pulled     int
	Skipped    int
	Requeued   int
	Dispatched int
	Completed  int
	Failed     int
	Running    int
}

// Counters is a point in time copy of the tracker state
type Counters struct {
	AgentID   string
	StartedAt time.Time

	Pulled     int
	Skipped    int
	Requeued   int
	Dispatched int
	Completed  int
	Failed     int
	Running    int
}

// Progress keeps aggregated message counters. It is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	counters Counters
	onChange func(Counters)
}

// New creates a tracker; onChange, when set, receives a copy after every update.
func New(agentID string, onChange func(Counters)) *Progress {
	return &Progress{counters: Counters{AgentID: agentID, StartedAt: time.Now()}, onChange: onChange}
}

// Update applies the supplied delta. The onChange callback is invoked with a
// copy outside the critical section so it may block.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	c := &p.counters
	c.Pulled += d.Pulled
	c.Skipped += d.Skipped
	c.Requeued += d.Requeued
	c.Dispatched += d.Dispatched
	c.Completed += d.Completed
	c.Failed += d.Failed
	c.Running += d.Running
	snapshot := *c
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// OnChange replaces the callback; nil disables it.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds tracker in a derived context
func WithTracker(ctx context.Context, tracker *Progress) context.Context {
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx applies the delta to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
