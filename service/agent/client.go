package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/viant/gridagent/internal/idgen"
	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/service/codec"
)

// ErrResource is returned when the agent answers a pull request with an error reply.
var ErrResource = errors.New("agent: resource unavailable")

// Client is the worker side of the control channel. It is safe for concurrent use.
type Client struct {
	conn    net.Conn
	encoder *json.Encoder
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*waiter
	err     error
	done    chan struct{}
}

// Dial connects to the control channel at address
func Dial(ctx context.Context, address string) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, address, err)
	}
	c := &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		pending: map[string]*waiter{},
		done:    make(chan struct{}),
	}
	go c.read()
	return c, nil
}

func (c *Client) read() {
	defer close(c.done)
	decoder := json.NewDecoder(c.conn)
	for {
		request := &protocol.ProcessRequest{}
		if err := decoder.Decode(request); err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %v", ErrTransport, err)
			for id, w := range c.pending {
				close(w.records)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		w, ok := c.pending[request.RequestID]
		c.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case w.records <- request:
		case <-w.quit:
		}
	}
}

// waiter receives the records answering one request
type waiter struct {
	records chan *protocol.ProcessRequest
	quit    chan struct{}
}

func (c *Client) register() (string, *waiter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", nil, c.err
	}
	requestID := idgen.New()
	w := &waiter{records: make(chan *protocol.ProcessRequest, 16), quit: make(chan struct{})}
	c.pending[requestID] = w
	return requestID, w, nil
}

func (c *Client) release(requestID string, w *waiter) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
	close(w.quit)
}

func (c *Client) send(reply *protocol.ProcessReply) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.encoder.Encode(reply); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (c *Client) receive(ctx context.Context, w *waiter) (*protocol.ProcessRequest, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case request, ok := <-w.records:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			return nil, err
		}
		return request, nil
	}
}

// Resource pulls key from the agent and reassembles it
func (c *Client) Resource(ctx context.Context, key string) ([][]byte, error) {
	requestID, w, err := c.register()
	if err != nil {
		return nil, err
	}
	defer c.release(requestID, w)
	if err := c.send(&protocol.ProcessReply{RequestID: requestID, Resource: &protocol.ResourceRequest{Key: key}}); err != nil {
		return nil, err
	}
	blob, err := codec.Collect(ctx, replies(func(ctx context.Context) (*protocol.DataReply, error) {
		request, err := c.receive(ctx, w)
		if err != nil {
			return nil, err
		}
		if request.Resource == nil {
			return nil, fmt.Errorf("%w: unexpected record for %v", codec.ErrMalformedStream, key)
		}
		return request.Resource, nil
	}))
	if err != nil {
		return nil, err
	}
	if blob.Error != "" {
		return nil, fmt.Errorf("%w: %v: %v", ErrResource, key, blob.Error)
	}
	return blob.Chunks, nil
}

// Upload sends r as result key in chunks of chunkSize and waits for the acknowledgement
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, chunkSize int) error {
	requestID, w, err := c.register()
	if err != nil {
		return err
	}
	defer c.release(requestID, w)
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	buffer := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(r, buffer)
		last := errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF)
		if readErr != nil && !last {
			return fmt.Errorf("failed to read result %v: %w", key, readErr)
		}
		chunk := &protocol.ResultChunk{Key: key, Data: append([]byte(nil), buffer[:n]...), Complete: last}
		if err := c.send(&protocol.ProcessReply{RequestID: requestID, Result: chunk}); err != nil {
			return err
		}
		if last {
			break
		}
	}
	request, err := c.receive(ctx, w)
	if err != nil {
		return err
	}
	if request.Result == nil {
		return fmt.Errorf("%w: unexpected record for result %v", codec.ErrMalformedStream, key)
	}
	if request.Result.Error != "" {
		return fmt.Errorf("failed to upload %v: %v", key, request.Result.Error)
	}
	return nil
}

// Close drops the connection
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

type replies func(ctx context.Context) (*protocol.DataReply, error)

func (f replies) Next(ctx context.Context) (*protocol.DataReply, error) { return f(ctx) }
