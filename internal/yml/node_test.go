package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_Interface(t *testing.T) {
	node, err := Parse([]byte(`
pollster:
  batchSize: 4
queue:
  vendor: fs
  retryDelay: 100ms
  deadLetter: true
  ratio: 0.5
  empty: ~
keys: [a, b]
`))
	assert.NoError(t, err)
	expected := map[string]interface{}{
		"pollster": map[string]interface{}{"batchSize": int64(4)},
		"queue": map[string]interface{}{
			"vendor":     "fs",
			"retryDelay": "100ms",
			"deadLetter": true,
			"ratio":      0.5,
			"empty":      nil,
		},
		"keys": []interface{}{"a", "b"},
	}
	assert.Equal(t, expected, node.Interface())
	assert.Equal(t, "fs", node.Lookup("queue").Lookup("vendor").Value)
	assert.Nil(t, node.Lookup("missing"))
}
