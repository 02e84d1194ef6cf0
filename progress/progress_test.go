package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	var calls int32
	tracker := New("agent-1", func(Counters) { atomic.AddInt32(&calls, 1) })
	ctx := WithTracker(context.Background(), tracker)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UpdateCtx(ctx, Delta{Pulled: 1, Running: 1})
			UpdateCtx(ctx, Delta{Completed: 1, Running: -1})
		}()
	}
	wg.Wait()

	snapshot := tracker.Snapshot()
	assert.Equal(t, 10, snapshot.Pulled)
	assert.Equal(t, 10, snapshot.Completed)
	assert.Equal(t, 0, snapshot.Running)
	assert.Equal(t, "agent-1", snapshot.AgentID)
	assert.EqualValues(t, 20, atomic.LoadInt32(&calls))

	tracker.OnChange(nil)
	tracker.Update(Delta{Skipped: 1})
	assert.EqualValues(t, 20, atomic.LoadInt32(&calls))
}

func TestProgress_Nil(t *testing.T) {
	var tracker *Progress
	tracker.Update(Delta{Pulled: 1})
	assert.Equal(t, Counters{}, tracker.Snapshot())
	UpdateCtx(context.Background(), Delta{Pulled: 1})
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}
