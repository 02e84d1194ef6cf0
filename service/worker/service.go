// Package worker sends claimed tasks to the worker process and waits for its verdict.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/viant/gridagent/model/protocol"
)

// ErrTransport wraps failures talking to the worker process.
var ErrTransport = errors.New("worker: transport failure")

// Client executes tasks on a worker
type Client interface {
	// Check reports whether the worker accepts connections.
	Check(ctx context.Context) error

	// Process sends header followed by inputs and returns the worker output.
	Process(ctx context.Context, header *protocol.TaskHeader, inputs protocol.Replies) (*protocol.Output, error)
}

// Func adapts an in-process function to a Client
type Func func(ctx context.Context, header *protocol.TaskHeader, inputs protocol.Replies) (*protocol.Output, error)

func (f Func) Check(context.Context) error { return nil }

func (f Func) Process(ctx context.Context, header *protocol.TaskHeader, inputs protocol.Replies) (*protocol.Output, error) {
	return f(ctx, header, inputs)
}

// Socket talks to a worker listening on a unix domain socket
type Socket struct {
	address string
	timeout time.Duration
}

// NewSocket creates a client for the worker at address; timeout bounds one
// execution, zero means no bound beyond the caller context.
func NewSocket(address string, timeout time.Duration) *Socket {
	return &Socket{address: address, timeout: timeout}
}

func (s *Socket) dial(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", s.address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, s.address, err)
	}
	return conn, nil
}

func (s *Socket) Check(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (s *Socket) Process(ctx context.Context, header *protocol.TaskHeader, inputs protocol.Replies) (*protocol.Output, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	output, err := s.exchange(ctx, conn, header, inputs)
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return nil, ctxErr
	}
	return output, err
}

func (s *Socket) exchange(ctx context.Context, conn net.Conn, header *protocol.TaskHeader, inputs protocol.Replies) (*protocol.Output, error) {
	encoder := json.NewEncoder(conn)
	send := func(request *protocol.ComputeRequest) error {
		if err := encoder.Encode(&protocol.ProcessRequest{Compute: request}); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return nil
	}
	if err := send(&protocol.ComputeRequest{Header: header}); err != nil {
		return nil, err
	}
	for {
		reply, err := inputs.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := send(&protocol.ComputeRequest{Data: reply}); err != nil {
			return nil, err
		}
	}
	if err := send(&protocol.ComputeRequest{LastData: true}); err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(conn)
	for {
		var reply protocol.ProcessReply
		if err := decoder.Decode(&reply); err != nil {
			return nil, fmt.Errorf("%w: waiting for output: %v", ErrTransport, err)
		}
		if reply.Output != nil {
			return reply.Output, nil
		}
	}
}
