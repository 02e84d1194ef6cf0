package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/dao"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv := New()

	options := &task.Options{MaxDuration: time.Minute, MaxRetries: 2}
	assert.NoError(t, srv.Create(ctx, "s1", "root", options))
	assert.NoError(t, srv.Create(ctx, "s2", "", nil))
	assert.True(t, errors.Is(srv.Create(ctx, "s1", "", nil), dao.ErrAlreadyExists))

	cancelled, err := srv.IsCancelled(ctx, "s1")
	assert.NoError(t, err)
	assert.False(t, cancelled)

	defaults, err := srv.DefaultOptions(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, options, defaults)

	assert.NoError(t, srv.Cancel(ctx, "s1"))
	cancelled, err = srv.IsCancelled(ctx, "s1")
	assert.NoError(t, err)
	assert.True(t, cancelled)

	err = srv.Cancel(ctx, "s1")
	assert.True(t, errors.Is(err, dao.ErrAlreadyCancelled), "double cancel is an error")
	assert.True(t, errors.Is(srv.Cancel(ctx, "missing"), dao.ErrNotFound))

	var ids []string
	for id, err := range srv.List(ctx) {
		assert.NoError(t, err)
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	assert.NoError(t, srv.Delete(ctx, "s2"))
	assert.True(t, errors.Is(srv.Delete(ctx, "s2"), dao.ErrNotFound))
	_, err = srv.IsCancelled(ctx, "s2")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	_, err = srv.DefaultOptions(ctx, "s2")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}
