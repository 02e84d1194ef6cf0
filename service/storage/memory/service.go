package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/service/storage"
)

// Service keeps blobs in memory preserving the chunk boundaries they were written with.
type Service struct {
	mu        sync.RWMutex
	blobs     map[string][][]byte
	chunkSize int
}

var _ storage.Service = (*Service)(nil)

// New creates an empty store; Put splits content by chunkSize.
func New(chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}
	return &Service{blobs: map[string][][]byte{}, chunkSize: chunkSize}
}

// Set stores key with the exact chunks supplied.
func (s *Service) Set(key string, chunks ...[]byte) {
	copied := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		copied[i] = append([]byte(nil), chunk...)
	}
	s.mu.Lock()
	s.blobs[key] = copied
	s.mu.Unlock()
}

func (s *Service) Get(ctx context.Context, key string) (protocol.Chunks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	chunks, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %v", storage.ErrDataNotFound, key)
	}
	return protocol.NewChunks(chunks...), nil
}

func (s *Service) Put(ctx context.Context, key string, r io.Reader) error {
	var chunks [][]byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		buffer := make([]byte, s.chunkSize)
		n, err := io.ReadFull(r, buffer)
		if n > 0 {
			chunks = append(chunks, buffer[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %v: %w", key, err)
		}
	}
	s.mu.Lock()
	s.blobs[key] = chunks
	s.mu.Unlock()
	return nil
}

func (s *Service) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return fmt.Errorf("%w: %v", storage.ErrDataNotFound, key)
	}
	delete(s.blobs, key)
	return nil
}
