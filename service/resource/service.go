// Package resource serves resources the worker pulls during an execution.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/service/codec"
	"github.com/viant/gridagent/service/storage"
)

// ReplyWriter sends records back to the worker. Implementations must be safe
// for concurrent use since pull requests overlap.
type ReplyWriter interface {
	WriteReply(ctx context.Context, request *protocol.ProcessRequest) error
}

// WriterFunc adapts a function to a ReplyWriter
type WriterFunc func(ctx context.Context, request *protocol.ProcessRequest) error

func (f WriterFunc) WriteReply(ctx context.Context, request *protocol.ProcessRequest) error {
	return f(ctx, request)
}

// Service serves resource pull requests
type Service struct {
	objects storage.Service
}

// New creates a resource processor reading from objects
func New(objects storage.Service) *Service {
	return &Service{objects: objects}
}

// Serve streams key to w as the reply to requestID. An absent key produces a
// single error reply carrying protocol.KeyNotFound; an empty blob a single
// error reply with the codec error. Returned errors are transport or read
// failures after the reply was opened.
func (s *Service) Serve(ctx context.Context, requestID, key string, w ReplyWriter) error {
	send := func(reply *protocol.DataReply) error {
		return w.WriteReply(ctx, &protocol.ProcessRequest{RequestID: requestID, Resource: reply})
	}
	chunks, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return send(codec.ErrorReply(requestID, key, protocol.KeyNotFound))
		}
		return send(codec.ErrorReply(requestID, key, err.Error()))
	}
	replies := codec.ToReplySequence(chunks, requestID, key)
	for opened := false; ; opened = true {
		reply, err := replies.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if !opened {
				return send(codec.ErrorReply(requestID, key, err.Error()))
			}
			return fmt.Errorf("failed to stream %v: %w", key, err)
		}
		if err := send(reply); err != nil {
			return err
		}
	}
}
