package gridagent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/gridagent/service/messaging"
)

func TestDefaultConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(c *Config)
		expect      string
	}{
		{description: "batch size", mutate: func(c *Config) { c.Pollster.BatchSize = 0 }, expect: "pollster.batchSize"},
		{description: "vendor", mutate: func(c *Config) { c.Queue.Vendor = "kafka" }, expect: "queue.vendor"},
		{description: "fs base path", mutate: func(c *Config) { c.Queue.Vendor = messaging.VendorFs }, expect: "queue.basePath"},
		{description: "ttl", mutate: func(c *Config) { c.Dispatch.TTL = 0 }, expect: "dispatch.ttl"},
		{description: "agent address", mutate: func(c *Config) { c.Agent.Address = "" }, expect: "agent.address"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			config := DefaultConfig()
			testCase.mutate(config)
			err := config.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), testCase.expect)
		})
	}
}

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(`
pollster:
  batchSize: 8
queue:
  vendor: fs
  basePath: /tmp/gridagent/queue
  retryDelay: 250ms
dispatch:
  ttl: 2m
resolver:
  maxConcurrency: 4
`))
	assert.NoError(t, err)
	assert.Equal(t, 8, config.Pollster.BatchSize)
	assert.Equal(t, messaging.VendorFs, config.Queue.Vendor)
	assert.Equal(t, 250*time.Millisecond, config.Queue.RetryDelay)
	assert.Equal(t, 2*time.Minute, config.Dispatch.TTL)
	assert.Equal(t, 4, config.Resolver.MaxConcurrency)
	assert.Equal(t, time.Second, config.Queue.PullWait)
	assert.Equal(t, DefaultConfig().Agent.Address, config.Agent.Address)
}

func TestParseConfig_Empty(t *testing.T) {
	config, err := ParseConfig(nil)
	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestParseConfig_Schema(t *testing.T) {
	testCases := []struct {
		description string
		yaml        string
		expect      string
	}{
		{description: "batch size", yaml: "pollster:\n  batchSize: 0\n", expect: "batchSize"},
		{description: "vendor", yaml: "queue:\n  vendor: kafka\n", expect: "vendor"},
		{description: "duration", yaml: "dispatch:\n  ttl: soon\n", expect: "ttl"},
		{description: "unknown section", yaml: "scheduler:\n  workers: 3\n", expect: "scheduler"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, err := ParseConfig([]byte(testCase.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), testCase.expect)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	ctx := context.Background()
	URL := "mem://localhost/gridagent/config.yaml"
	fs := afs.New()
	assert.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader("pollster:\n  batchSize: 3\n")))

	config, err := LoadConfig(ctx, URL)
	assert.NoError(t, err)
	assert.Equal(t, 3, config.Pollster.BatchSize)

	_, err = LoadConfig(ctx, "mem://localhost/gridagent/missing.yaml")
	assert.Error(t, err)
}
