package store

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/viant/gridagent/service/dao"
)

// MemoryStore is a generic in-memory keyed store. Records are cloned on the
// way in and out so callers never share state with the store. Mutations that
// must be atomic go through Update, which runs under the write lock.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	clone       func(*T) *T
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, clone func(*T) *T) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
		clone:       clone,
	}
}

// Create stores a new record; ErrAlreadyExists when the key is taken.
func (s *MemoryStore[K, T]) Create(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("%w: %v", dao.ErrAlreadyExists, key)
	}
	s.records[key] = s.clone(v)
	return nil
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = s.clone(v)
	return nil
}

// Load returns a copy of the record or ErrNotFound.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	return s.clone(v), nil
}

// Update applies fn to the stored record atomically; fn errors abort the update.
func (s *MemoryStore[K, T]) Update(_ context.Context, key K, fn func(*T) error) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	candidate := s.clone(v)
	if err := fn(candidate); err != nil {
		return nil, err
	}
	s.records[key] = candidate
	return s.clone(candidate), nil
}

// UpdateAll applies fn to every record matching match and returns the number updated.
// A record whose fn fails is left untouched and does not count.
func (s *MemoryStore[K, T]) UpdateAll(_ context.Context, match func(*T) bool, fn func(*T) error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for key, v := range s.records {
		if !match(v) {
			continue
		}
		candidate := s.clone(v)
		if err := fn(candidate); err != nil {
			continue
		}
		s.records[key] = candidate
		updated++
	}
	return updated
}

// Delete removes a record; ErrNotFound when absent.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	delete(s.records, key)
	return nil
}

// Keys iterates over a snapshot of the stored keys in no particular order.
func (s *MemoryStore[K, T]) Keys(ctx context.Context) iter.Seq2[K, error] {
	s.mu.RLock()
	keys := make([]K, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	return func(yield func(K, error) bool) {
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				var zero K
				yield(zero, err)
				return
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}
