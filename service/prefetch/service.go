// Package prefetch turns the inputs of a claimed task into the data reply stream sent to the worker.
package prefetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/model/task"
	"github.com/viant/gridagent/service/codec"
	"github.com/viant/gridagent/service/storage"
)

// Service prefetches task inputs
type Service struct {
	objects storage.Service
}

// New creates a prefetcher reading inputs from objects
func New(objects storage.Service) *Service {
	return &Service{objects: objects}
}

// Keys returns the input keys of t in streaming order: payload first, then data dependencies.
func Keys(t *task.TaskData) []string {
	var keys []string
	seen := map[string]bool{}
	if t.PayloadKey != "" {
		keys = append(keys, t.PayloadKey)
		seen[t.PayloadKey] = true
	}
	for _, key := range t.DataDependencies {
		if !seen[key] {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	return keys
}

// Prefetch opens every input of t and returns the concatenated reply sequences,
// one per key, with the task id as reply id. Every key is looked up before the
// first record is produced; a missing key fails with storage.ErrDataNotFound.
// Chunk content is still pulled lazily while the stream is consumed.
func (s *Service) Prefetch(ctx context.Context, t *task.TaskData) (protocol.Replies, error) {
	keys := Keys(t)
	sequences := make([]protocol.Replies, 0, len(keys))
	opened := make([]protocol.Chunks, 0, len(keys))
	for _, key := range keys {
		chunks, err := s.objects.Get(ctx, key)
		if err != nil {
			for _, c := range opened {
				_ = c.Close()
			}
			if errors.Is(err, storage.ErrDataNotFound) {
				return nil, fmt.Errorf("failed to prefetch task %v: %w", t.ID, err)
			}
			return nil, fmt.Errorf("failed to prefetch task %v key %v: %w", t.ID, key, err)
		}
		opened = append(opened, chunks)
		sequences = append(sequences, codec.ToReplySequence(chunks, t.ID, key))
	}
	return codec.Concat(sequences...), nil
}
