package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/gridagent/service/dao"
)

type record struct {
	ID    string
	Count int
}

func newStore() *MemoryStore[string, record] {
	return NewMemoryStore[string, record](
		func(r *record) string { return r.ID },
		func(r *record) *record { clone := *r; return &clone },
	)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	assert.NoError(t, s.Create(ctx, &record{ID: "a"}))
	assert.True(t, errors.Is(s.Create(ctx, &record{ID: "a"}), dao.ErrAlreadyExists))
	assert.True(t, errors.Is(s.Save(ctx, nil), dao.ErrNilEntity))

	loaded, err := s.Load(ctx, "a")
	assert.NoError(t, err)
	loaded.Count = 10
	again, _ := s.Load(ctx, "a")
	assert.Equal(t, 0, again.Count, "loaded copies must not alias the store")

	updated, err := s.Update(ctx, "a", func(r *record) error { r.Count++; return nil })
	assert.NoError(t, err)
	assert.Equal(t, 1, updated.Count)

	boom := errors.New("boom")
	_, err = s.Update(ctx, "a", func(r *record) error { r.Count = 99; return boom })
	assert.True(t, errors.Is(err, boom))
	again, _ = s.Load(ctx, "a")
	assert.Equal(t, 1, again.Count)

	assert.NoError(t, s.Save(ctx, &record{ID: "b"}))
	count := s.UpdateAll(ctx, func(r *record) bool { return true }, func(r *record) error { r.Count += 5; return nil })
	assert.Equal(t, 2, count)

	var keys []string
	for key, err := range s.Keys(ctx) {
		assert.NoError(t, err)
		keys = append(keys, key)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	assert.NoError(t, s.Delete(ctx, "a"))
	assert.True(t, errors.Is(s.Delete(ctx, "a"), dao.ErrNotFound))
	_, err = s.Load(ctx, "a")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}
