package protocol

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

type recordingWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes []int
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, len(p))
	return w.buf.Write(p)
}

type countingTracker struct {
	sent  atomic.Uint64
	quiet atomic.Uint64
}

func (c *countingTracker) IncSent(n uint64)      { c.sent.Add(n) }
func (c *countingTracker) IncQuietSent(n uint64) { c.quiet.Add(n) }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteMessageSingleWrite(t *testing.T) {
	c := testCodec()
	msg, err := c.NewMsg(MsgPong, &Pong{TotalDifficulty: 10, Height: 20}, ser.ProtocolVersionLocal)
	require.NoError(t, err)

	w := &recordingWriter{}
	tracker := &countingTracker{}
	require.NoError(t, WriteMessage(w, msg, tracker))

	assert.Equal(t, []int{HeaderLen + 16}, w.writes)
	assert.Equal(t, uint64(HeaderLen+16), tracker.sent.Load())
	assert.Zero(t, tracker.quiet.Load())
}

func TestWriteMessageAttachmentChunks(t *testing.T) {
	c := testCodec()
	archive := &TxHashSetArchive{Hash: core.HashOf([]byte("h")), Height: 5, Bytes: 20000}
	msg, err := c.NewMsg(MsgTxHashSetArchive, archive, ser.ProtocolVersionLocal)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x5A}, 20000)
	msg.AddAttachment(bytes.NewReader(payload))

	w := &recordingWriter{}
	tracker := &countingTracker{}
	require.NoError(t, WriteMessage(w, msg, tracker))

	frameLen := HeaderLen + len(msg.Body())
	assert.Equal(t, []int{frameLen, 8192, 8192, 3616}, w.writes)
	assert.Equal(t, uint64(20000), tracker.quiet.Load())
	assert.Equal(t, uint64(frameLen), tracker.sent.Load())
	assert.Equal(t, payload, w.buf.Bytes()[frameLen:])
}

func TestWriteMessageNilTracker(t *testing.T) {
	c := testCodec()
	msg, err := c.NewMsg(MsgKernelDataResponse, &KernelDataResponse{Bytes: 3}, ser.ProtocolVersionLocal)
	require.NoError(t, err)
	msg.AddAttachment(bytes.NewReader([]byte{1, 2, 3}))

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg, nil))
	assert.Equal(t, HeaderLen+8+3, buf.Len())
}

func TestWriteMessageError(t *testing.T) {
	c := testCodec()
	tracker := &countingTracker{}
	err := WriteHeaderBody(failingWriter{}, c, MsgPing, &Ping{}, ser.ProtocolVersionLocal, tracker)
	assert.Error(t, err)
	assert.Zero(t, tracker.sent.Load())
}

func TestWriterChunkSize(t *testing.T) {
	c := testCodec()
	msg, err := c.NewMsg(MsgKernelDataResponse, &KernelDataResponse{Bytes: 10}, ser.ProtocolVersionLocal)
	require.NoError(t, err)
	msg.AddAttachment(bytes.NewReader(make([]byte, 10)))

	w := &recordingWriter{}
	wr := NewWriter(w, nil, WriterConfig{ChunkSize: 4})
	require.NoError(t, wr.WriteMessage(msg))
	assert.Equal(t, []int{HeaderLen + 8, 4, 4, 2}, w.writes)
}

func TestWriterConcurrentFramesDoNotInterleave(t *testing.T) {
	c := testCodec()
	w := &recordingWriter{}
	tracker := &countingTracker{}
	wr := NewWriter(w, tracker, WriterConfig{})

	const senders = 8
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := c.NewMsg(MsgKernelDataResponse, &KernelDataResponse{Bytes: 100}, ser.ProtocolVersionLocal)
			if !assert.NoError(t, err) {
				return
			}
			msg.AddAttachment(bytes.NewReader(bytes.Repeat([]byte{byte(i)}, 100)))
			assert.NoError(t, wr.WriteMessage(msg))
		}(i)
	}
	wg.Wait()

	sr := NewStreamReader(bytes.NewReader(w.buf.Bytes()), c, ser.ProtocolVersionLocal)
	for i := 0; i < senders; i++ {
		h, err := sr.ReadExpectedHeader(MsgKernelDataResponse)
		require.NoError(t, err)
		var resp KernelDataResponse
		require.NoError(t, sr.ReadBody(h.Len, &resp))

		att := make([]byte, resp.Bytes)
		require.NoError(t, sr.ReadRawBody(resp.Bytes, func(r *ser.BinReader) error {
			b, err := r.ReadFixedBytes(int(resp.Bytes))
			copy(att, b)
			return err
		}))
		assert.Equal(t, bytes.Repeat([]byte{att[0]}, 100), att)
	}
	assert.Equal(t, uint64(senders*100), tracker.quiet.Load())
}
