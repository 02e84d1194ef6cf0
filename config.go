package gridagent

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/gridagent/internal/yml"
	"github.com/viant/gridagent/service/messaging"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed config.schema.json
var configSchema []byte

// ErrInvalidConfig is returned for configurations failing schema or semantic validation.
var ErrInvalidConfig = errors.New("gridagent: invalid config")

// Config is a serialisable representation of the agent configuration. The
// zero-value of every nested section inherits the defaults.
type Config struct {
	Pollster PollsterConfig `json:"pollster" yaml:"pollster"`
	Queue    QueueConfig    `json:"queue" yaml:"queue"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Agent    AgentConfig    `json:"agent" yaml:"agent"`
	Worker   WorkerConfig   `json:"worker" yaml:"worker"`
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
}

type PollsterConfig struct {
	BatchSize int `json:"batchSize" yaml:"batchSize"`
}

type QueueConfig struct {
	Vendor            messaging.Vendor `json:"vendor" yaml:"vendor"`
	BasePath          string           `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	MaxRetries        int              `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay        time.Duration    `json:"retryDelay" yaml:"retryDelay"`
	VisibilityTimeout time.Duration    `json:"visibilityTimeout" yaml:"visibilityTimeout"`
	PullWait          time.Duration    `json:"pullWait" yaml:"pullWait"`
}

// StorageConfig selects the object store; an empty BaseURL keeps objects in memory.
type StorageConfig struct {
	BaseURL   string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	ChunkSize int    `json:"chunkSize" yaml:"chunkSize"`
}

type AgentConfig struct {
	Address string `json:"address" yaml:"address"`
}

type WorkerConfig struct {
	Address string        `json:"address" yaml:"address"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type DispatchConfig struct {
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

type ResolverConfig struct {
	MaxConcurrency int `json:"maxConcurrency" yaml:"maxConcurrency"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Version     string `json:"version" yaml:"version"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a Config populated with the agent defaults. Callers
// may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Pollster: PollsterConfig{BatchSize: 1},
		Queue: QueueConfig{
			Vendor:            messaging.VendorMemory,
			MaxRetries:        3,
			RetryDelay:        100 * time.Millisecond,
			VisibilityTimeout: 5 * time.Minute,
			PullWait:          time.Second,
		},
		Storage:  StorageConfig{ChunkSize: 64 * 1024},
		Agent:    AgentConfig{Address: "/tmp/gridagent/agent.sock"},
		Worker:   WorkerConfig{Address: "/tmp/gridagent/worker.sock"},
		Dispatch: DispatchConfig{TTL: time.Minute},
		Tracing:  TracingConfig{ServiceName: "gridagent", Version: "0.1.0"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Pollster.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("pollster.batchSize must be >= 1"))
	}
	switch c.Queue.Vendor {
	case messaging.VendorMemory:
	case messaging.VendorFs:
		if c.Queue.BasePath == "" {
			errs = append(errs, fmt.Errorf("queue.basePath is required for the fs vendor"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.vendor %q is not supported", c.Queue.Vendor))
	}
	if c.Queue.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("queue.maxRetries must be >= 0"))
	}
	if c.Storage.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("storage.chunkSize must be >= 0"))
	}
	if c.Agent.Address == "" {
		errs = append(errs, fmt.Errorf("agent.address is required"))
	}
	if c.Dispatch.TTL <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.ttl must be > 0"))
	}
	if c.Resolver.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("resolver.maxConcurrency must be >= 0"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ParseConfig validates YAML data against the config schema and decodes it over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	node, err := yml.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	document := node.Interface()
	if document == nil {
		document = map[string]interface{}{}
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(configSchema), gojsonschema.NewBytesLoader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, item := range result.Errors() {
			details = append(details, item.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(details, "; "))
	}
	config := DefaultConfig()
	if len(node.Content) > 0 {
		if err := node.Decode(config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig reads the YAML config at URL; any afs scheme or a local path is supported.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	return ParseConfig(data)
}
