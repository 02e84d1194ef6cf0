package codec

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/gridagent/model/protocol"
)

type countingChunks struct {
	protocol.Chunks
	pulled int
	closed bool
}

func (c *countingChunks) Next(ctx context.Context) ([]byte, error) {
	c.pulled++
	return c.Chunks.Next(ctx)
}

func (c *countingChunks) Close() error {
	c.closed = true
	return nil
}

func drain(t *testing.T, replies protocol.Replies) ([]*protocol.DataReply, error) {
	t.Helper()
	var out []*protocol.DataReply
	for {
		reply, err := replies.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, reply)
	}
}

func TestToReplySequence(t *testing.T) {
	testCases := []struct {
		name   string
		chunks [][]byte
	}{
		{name: "single chunk", chunks: [][]byte{[]byte("A")}},
		{name: "two chunks", chunks: [][]byte{[]byte("AB"), []byte("CD")}},
		{name: "many chunks", chunks: [][]byte{[]byte("1"), []byte("22"), []byte("333"), []byte("4444")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			source := &countingChunks{Chunks: protocol.NewChunks(tc.chunks...)}
			replies, err := drain(t, ToReplySequence(source, "r1", "k1"))
			assert.NoError(t, err)
			assert.Len(t, replies, len(tc.chunks)+1)
			assert.True(t, replies[0].IsInit())
			assert.Equal(t, "k1", replies[0].Init.Key)
			assert.True(t, replies[len(replies)-1].IsComplete())
			assert.Nil(t, replies[len(replies)-1].Payload())
			var actual [][]byte
			for _, reply := range replies[:len(replies)-1] {
				assert.Equal(t, "r1", reply.ReplyID)
				actual = append(actual, reply.Payload())
			}
			assert.Equal(t, tc.chunks, actual)
			assert.True(t, source.closed)
		})
	}
}

func TestToReplySequence_Empty(t *testing.T) {
	source := &countingChunks{Chunks: protocol.NewChunks()}
	_, err := ToReplySequence(source, "r1", "k1").Next(context.Background())
	assert.True(t, errors.Is(err, ErrEmptyStream))
	assert.True(t, source.closed)
}

func TestToReplySequence_Lazy(t *testing.T) {
	source := &countingChunks{Chunks: protocol.NewChunks([]byte("a"), []byte("b"), []byte("c"))}
	replies := ToReplySequence(source, "r1", "k1")
	assert.Equal(t, 0, source.pulled)
	_, err := replies.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, source.pulled)
	_, err = replies.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, source.pulled)
}

func TestCollect(t *testing.T) {
	chunks := [][]byte{[]byte("AB"), []byte("CD"), []byte("EF")}
	blob, err := Collect(context.Background(), ToReplySequence(protocol.NewChunks(chunks...), "r1", "k1"))
	assert.NoError(t, err)
	assert.Equal(t, "k1", blob.Key)
	assert.Equal(t, chunks, blob.Chunks)

	blob, err = Collect(context.Background(), protocol.NewReplies(ErrorReply("r2", "k2", protocol.KeyNotFound)))
	assert.NoError(t, err)
	assert.Equal(t, protocol.KeyNotFound, blob.Error)
	assert.Empty(t, blob.Chunks)

	_, err = Collect(context.Background(), protocol.NewReplies(&protocol.DataReply{ReplyID: "r3", Data: &protocol.DataChunk{Data: []byte("x")}}))
	assert.True(t, errors.Is(err, ErrMalformedStream))

	_, err = Collect(context.Background(), protocol.NewReplies(&protocol.DataReply{ReplyID: "r4", Init: &protocol.DataInit{Key: "k4", Data: &protocol.DataChunk{Data: []byte("x")}}}))
	assert.True(t, errors.Is(err, ErrMalformedStream))
}

func TestConcat(t *testing.T) {
	sequence := Concat(
		ToReplySequence(protocol.NewChunks([]byte("a")), "t1", "k1"),
		ToReplySequence(protocol.NewChunks([]byte("b"), []byte("c")), "t1", "k2"),
	)
	first, err := Collect(context.Background(), sequence)
	assert.NoError(t, err)
	assert.Equal(t, "k1", first.Key)
	second, err := Collect(context.Background(), sequence)
	assert.NoError(t, err)
	assert.Equal(t, "k2", second.Key)
	assert.Equal(t, [][]byte{[]byte("b"), []byte("c")}, second.Chunks)
	_, err = sequence.Next(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
}
