package protocol

import (
	"context"
	"io"
)

// Chunks is a lazy sequence of byte chunks. Next pulls one element and may
// suspend; it returns io.EOF once the sequence is exhausted.
type Chunks interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Replies is a lazy sequence of data reply records with the same contract as Chunks.
type Replies interface {
	Next(ctx context.Context) (*DataReply, error)
}

type sliceChunks struct {
	chunks [][]byte
	index  int
}

func (s *sliceChunks) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.index]
	s.index++
	return chunk, nil
}

func (s *sliceChunks) Close() error { return nil }

// NewChunks returns Chunks over in-memory pieces
func NewChunks(chunks ...[]byte) Chunks {
	return &sliceChunks{chunks: chunks}
}

type sliceReplies struct {
	replies []*DataReply
	index   int
}

func (s *sliceReplies) Next(ctx context.Context) (*DataReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index >= len(s.replies) {
		return nil, io.EOF
	}
	reply := s.replies[s.index]
	s.index++
	return reply, nil
}

// NewReplies returns Replies over in-memory records
func NewReplies(replies ...*DataReply) Replies {
	return &sliceReplies{replies: replies}
}
