// Package storage defines the object store holding task inputs and results.
// Blobs are read back as lazy chunk sequences so their size is not bounded
// by memory.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/service/dao"
)

// DefaultChunkSize is the read chunk size used when none is configured.
const DefaultChunkSize = 64 * 1024

// ErrDataNotFound is returned for absent keys; it also matches dao.ErrNotFound.
var ErrDataNotFound = fmt.Errorf("storage: data %w", dao.ErrNotFound)

// Service represents an object store
type Service interface {
	// Get returns the chunks of key or an error wrapping ErrDataNotFound.
	Get(ctx context.Context, key string) (protocol.Chunks, error)

	// Put writes or overwrites key with the content of r.
	Put(ctx context.Context, key string, r io.Reader) error

	// Delete removes key; ErrDataNotFound if absent.
	Delete(ctx context.Context, key string) error
}
