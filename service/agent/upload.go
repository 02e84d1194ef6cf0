package agent

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/service/storage"
)

// upload streams one result key into the object store while chunks arrive
type upload struct {
	writer *io.PipeWriter
	done   chan error
}

// uploads tracks the result keys being written on one connection
type uploads struct {
	objects storage.Service
	writer  *connWriter
	mu      sync.Mutex
	active  map[string]*upload
	wg      sync.WaitGroup
}

func newUploads(objects storage.Service, writer *connWriter) *uploads {
	return &uploads{objects: objects, writer: writer, active: map[string]*upload{}}
}

// write appends chunk to its key; the completing chunk is acknowledged once the object is stored
func (u *uploads) write(ctx context.Context, requestID string, chunk *protocol.ResultChunk) {
	u.mu.Lock()
	current, ok := u.active[chunk.Key]
	if !ok {
		current = u.open(ctx, chunk.Key)
		u.active[chunk.Key] = current
	}
	if chunk.Complete {
		delete(u.active, chunk.Key)
	}
	u.mu.Unlock()

	if len(chunk.Data) > 0 {
		if _, err := current.writer.Write(chunk.Data); err != nil {
			log.Printf("agent: result %v: %v", chunk.Key, err)
		}
	}
	if !chunk.Complete {
		return
	}
	_ = current.writer.Close()
	err := <-current.done
	ack := &protocol.ResultAck{Key: chunk.Key}
	if err != nil {
		ack.Error = err.Error()
	}
	if err := u.writer.WriteReply(ctx, &protocol.ProcessRequest{RequestID: requestID, Result: ack}); err != nil {
		log.Printf("agent: result %v ack: %v", chunk.Key, err)
	}
}

func (u *uploads) open(ctx context.Context, key string) *upload {
	reader, writer := io.Pipe()
	result := &upload{writer: writer, done: make(chan error, 1)}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		err := u.objects.Put(ctx, key, reader)
		if err != nil {
			err = fmt.Errorf("failed to store result %v: %w", key, err)
			_ = reader.CloseWithError(err)
		} else {
			_ = reader.Close()
		}
		result.done <- err
	}()
	return result
}

// abort fails every unfinished upload of a closed connection
func (u *uploads) abort() {
	u.mu.Lock()
	for key, current := range u.active {
		_ = current.writer.CloseWithError(fmt.Errorf("%w: upload of %v interrupted", ErrTransport, key))
		delete(u.active, key)
	}
	u.mu.Unlock()
	u.wg.Wait()
}
