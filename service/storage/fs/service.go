package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/gridagent/model/protocol"
	"github.com/viant/gridagent/service/storage"
)

// Service implements the object store on top of viant/afs, so any afs
// scheme (file://, mem://, gs://, s3:// ...) can back it.
type Service struct {
	fs        afs.Service
	baseURL   string
	chunkSize int
}

var _ storage.Service = (*Service)(nil)

// New creates an afs object store rooted at baseURL
func New(fs afs.Service, baseURL string, chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}
	return &Service{fs: fs, baseURL: baseURL, chunkSize: chunkSize}
}

func (s *Service) objectURL(key string) string {
	return url.Join(s.baseURL, strings.TrimLeft(key, "/"))
}

func (s *Service) Get(ctx context.Context, key string) (protocol.Chunks, error) {
	URL := s.objectURL(key)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %v exists: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %v", storage.ErrDataNotFound, key)
	}
	return &chunks{service: s, URL: URL, key: key}, nil
}

func (s *Service) Put(ctx context.Context, key string, r io.Reader) error {
	if err := s.fs.Upload(ctx, s.objectURL(key), file.DefaultFileOsMode, r); err != nil {
		return fmt.Errorf("failed to upload %v: %w", key, err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	URL := s.objectURL(key)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check if %v exists: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("%w: %v", storage.ErrDataNotFound, key)
	}
	return s.fs.Delete(ctx, URL)
}

// chunks opens the object on the first pull and reads chunkSize pieces.
type chunks struct {
	service *Service
	URL     string
	key     string
	reader  io.ReadCloser
	done    bool
	mu      sync.Mutex
}

func (c *chunks) Next(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.reader == nil {
		reader, err := c.service.fs.OpenURL(ctx, c.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open %v: %w", c.key, err)
		}
		c.reader = reader
	}
	buffer := make([]byte, c.service.chunkSize)
	n, err := io.ReadFull(c.reader, buffer)
	switch {
	case err == nil:
		return buffer[:n], nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		c.done = true
		return buffer[:n], nil
	case errors.Is(err, io.EOF):
		c.done = true
		return nil, io.EOF
	}
	return nil, fmt.Errorf("failed to read %v: %w", c.key, err)
}

func (c *chunks) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	if c.reader == nil {
		return nil
	}
	err := c.reader.Close()
	c.reader = nil
	return err
}
