package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd("test", "none")
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	valid := filepath.Join(t.TempDir(), "agent.yaml")
	assert.NoError(t, os.WriteFile(valid, []byte("pollster:\n  batchSize: 5\nqueue:\n  vendor: memory\n"), 0o644))
	out, err := execute(t, "validate", "--config", valid)
	assert.NoError(t, err)
	assert.Contains(t, out, "batchSize=5")

	invalid := filepath.Join(t.TempDir(), "agent.yaml")
	assert.NoError(t, os.WriteFile(invalid, []byte("pollster:\n  batchSize: 0\n"), 0o644))
	_, err = execute(t, "validate", "--config", invalid)
	assert.Error(t, err)
}

func TestValidate_Defaults(t *testing.T) {
	out, err := execute(t, "validate")
	assert.NoError(t, err)
	assert.Contains(t, out, "queue=memory")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	assert.NoError(t, err)
	assert.Contains(t, out, "gridagent test")
}
