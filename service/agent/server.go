// Package agent implements the local control channel. The worker connects to
// a unix domain socket during an execution to pull resources and upload results.
// Records are newline delimited JSON: protocol.ProcessReply from the worker,
// protocol.ProcessRequest back to it.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/service/resource"
	"github.com/viant/gridagent/service/storage"
)

var (
	// ErrAlreadyStarted is returned by Start while another execution is bound.
	ErrAlreadyStarted = errors.New("agent: execution already bound")
	// ErrNotStarted is returned by Stop without a bound execution.
	ErrNotStarted = errors.New("agent: no execution bound")
	// ErrTransport wraps failures of the underlying socket.
	ErrTransport = errors.New("agent: transport failure")
)

// Handle identifies the execution attempt bound to the channel
type Handle struct {
	SessionID  string
	TaskID     string
	DispatchID string
}

type binding struct {
	handle Handle
	ctx    context.Context
	cancel context.CancelFunc
}

// Server is the control channel endpoint
type Server struct {
	address   string
	resources *resource.Service
	objects   storage.Service

	mu        sync.Mutex
	listener  net.Listener
	listenErr error
	binding   *binding
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

// New creates a control channel listening on the unix socket address
func New(address string, objects storage.Service) *Server {
	return &Server{
		address:   address,
		objects:   objects,
		resources: resource.New(objects),
		conns:     map[net.Conn]struct{}{},
	}
}

// Address returns the socket path workers connect to
func (s *Server) Address() string { return s.address }

// Listen binds the socket and starts accepting connections. A bind failure is
// returned and kept; Start and Stop report it afterwards.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	_ = os.Remove(s.address)
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", s.address)
	if err != nil {
		s.listenErr = fmt.Errorf("%w: listen %s: %v", ErrTransport, s.address, err)
		return s.listenErr
	}
	s.listener = listener
	s.listenErr = nil
	s.wg.Add(1)
	go s.accept(listener)
	log.Printf("agent: listening on %s", s.address)
	return nil
}

func (s *Server) accept(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.mu.Lock()
				s.listenErr = fmt.Errorf("%w: accept: %v", ErrTransport, err)
				s.mu.Unlock()
				log.Printf("agent: accept error: %v", err)
			}
			return
		}
		s.mu.Lock()
		if s.listener == nil {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// Start binds the channel to one execution attempt; requests are served under ctx.
func (s *Server) Start(ctx context.Context, handle Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listenErr != nil {
		return s.listenErr
	}
	if s.listener == nil {
		return fmt.Errorf("%w: not listening", ErrTransport)
	}
	if s.binding != nil {
		return fmt.Errorf("%w: task %v", ErrAlreadyStarted, s.binding.handle.TaskID)
	}
	bindCtx, cancel := context.WithCancel(ctx)
	s.binding = &binding{handle: handle, ctx: bindCtx, cancel: cancel}
	return nil
}

// Stop unbinds the current execution and drops its connections.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binding == nil {
		if s.listenErr != nil {
			return s.listenErr
		}
		return ErrNotStarted
	}
	s.binding.cancel()
	s.binding = nil
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
	return s.listenErr
}

// Close stops listening and waits for connection handlers to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	if s.binding != nil {
		s.binding.cancel()
		s.binding = nil
	}
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
	s.mu.Unlock()
	var err error
	if listener != nil {
		err = listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.address)
	return err
}

func (s *Server) current() *binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

// connWriter serializes records written by concurrent handlers
type connWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func (w *connWriter) WriteReply(ctx context.Context, request *protocol.ProcessRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encoder.Encode(request); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (s *Server) serve(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()
	writer := &connWriter{encoder: json.NewEncoder(conn)}
	decoder := json.NewDecoder(conn)
	uploads := newUploads(s.objects, writer)
	defer uploads.abort()

	var handlers sync.WaitGroup
	defer handlers.Wait()
	for {
		var reply protocol.ProcessReply
		if err := decoder.Decode(&reply); err != nil {
			return
		}
		bound := s.current()
		if bound == nil {
			s.reject(writer, &reply)
			continue
		}
		switch {
		case reply.Resource != nil:
			handlers.Add(1)
			go func(requestID, key string) {
				defer handlers.Done()
				if err := s.resources.Serve(bound.ctx, requestID, key, writer); err != nil {
					log.Printf("agent: task %v resource %v: %v", bound.handle.TaskID, key, err)
				}
			}(reply.RequestID, reply.Resource.Key)
		case reply.Result != nil:
			uploads.write(bound.ctx, reply.RequestID, reply.Result)
		}
	}
}

// reject answers requests arriving while no execution is bound
func (s *Server) reject(w *connWriter, reply *protocol.ProcessReply) {
	ctx := context.Background()
	switch {
	case reply.Resource != nil:
		_ = w.WriteReply(ctx, &protocol.ProcessRequest{
			RequestID: reply.RequestID,
			Resource:  &protocol.DataReply{ReplyID: reply.RequestID, Init: &protocol.DataInit{Key: reply.Resource.Key, Error: ErrNotStarted.Error()}},
		})
	case reply.Result != nil && reply.Result.Complete:
		_ = w.WriteReply(ctx, &protocol.ProcessRequest{
			RequestID: reply.RequestID,
			Result:    &protocol.ResultAck{Key: reply.Result.Key, Error: ErrNotStarted.Error()},
		})
	}
}
