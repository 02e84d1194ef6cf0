// Package codec converts byte chunk sequences to data reply sequences and back.
// A reply sequence is one init record carrying the key and the first chunk,
// one data record per further chunk and a terminating completion record.
package codec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/viant/gridagent/model/protocol"
)

var (
	// ErrEmptyStream is returned when the source yields no chunk at all.
	ErrEmptyStream = errors.New("codec: no data were retrieved")
	// ErrMalformedStream is returned by Collect for out of order records.
	ErrMalformedStream = errors.New("codec: malformed reply stream")
)

type state int

const (
	stateInit state = iota
	stateData
	stateDone
)

type replySequence struct {
	source  protocol.Chunks
	replyID string
	key     string
	state   state
}

// ToReplySequence lazily wraps source; one source chunk is pulled per Next call.
// The source is closed once the completion record was produced or on error.
func ToReplySequence(source protocol.Chunks, replyID, key string) protocol.Replies {
	return &replySequence{source: source, replyID: replyID, key: key}
}

func (s *replySequence) Next(ctx context.Context) (*protocol.DataReply, error) {
	switch s.state {
	case stateInit:
		chunk, err := s.source.Next(ctx)
		if err != nil {
			s.finish()
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: key %v", ErrEmptyStream, s.key)
			}
			return nil, err
		}
		s.state = stateData
		return &protocol.DataReply{
			ReplyID: s.replyID,
			Init:    &protocol.DataInit{Key: s.key, Data: &protocol.DataChunk{Data: chunk}},
		}, nil
	case stateData:
		chunk, err := s.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.finish()
			return &protocol.DataReply{ReplyID: s.replyID, Data: &protocol.DataChunk{DataComplete: true}}, nil
		}
		if err != nil {
			s.finish()
			return nil, err
		}
		return &protocol.DataReply{ReplyID: s.replyID, Data: &protocol.DataChunk{Data: chunk}}, nil
	}
	return nil, io.EOF
}

func (s *replySequence) finish() {
	s.state = stateDone
	_ = s.source.Close()
}

// ErrorReply builds the self terminating reply announcing that key could not be served.
func ErrorReply(replyID, key, message string) *protocol.DataReply {
	return &protocol.DataReply{ReplyID: replyID, Init: &protocol.DataInit{Key: key, Error: message}}
}

type concat struct {
	sequences []protocol.Replies
	index     int
}

// Concat chains sequences one after another.
func Concat(sequences ...protocol.Replies) protocol.Replies {
	return &concat{sequences: sequences}
}

func (c *concat) Next(ctx context.Context) (*protocol.DataReply, error) {
	for c.index < len(c.sequences) {
		reply, err := c.sequences[c.index].Next(ctx)
		if errors.Is(err, io.EOF) {
			c.index++
			continue
		}
		return reply, err
	}
	return nil, io.EOF
}

// Blob is a reassembled reply sequence
type Blob struct {
	ReplyID string
	Key     string
	Chunks  [][]byte
	// Error is set when the init record announced a failure.
	Error string
}

// Collect reads one complete reply sequence from replies.
func Collect(ctx context.Context, replies protocol.Replies) (*Blob, error) {
	first, err := replies.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !first.IsInit() {
		return nil, fmt.Errorf("%w: expected init record", ErrMalformedStream)
	}
	blob := &Blob{ReplyID: first.ReplyID, Key: first.Init.Key}
	if first.IsError() {
		blob.Error = first.Init.Error
		return blob, nil
	}
	blob.Chunks = append(blob.Chunks, first.Payload())
	for {
		reply, err := replies.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing completion for key %v", ErrMalformedStream, blob.Key)
		}
		if err != nil {
			return nil, err
		}
		if reply.ReplyID != blob.ReplyID || reply.IsInit() || reply.Data == nil {
			return nil, fmt.Errorf("%w: unexpected record for key %v", ErrMalformedStream, blob.Key)
		}
		if reply.IsComplete() {
			return blob, nil
		}
		blob.Chunks = append(blob.Chunks, reply.Data.Data)
	}
}
