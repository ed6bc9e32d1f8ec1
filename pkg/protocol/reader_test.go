package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

func frame(t *testing.T, c *Codec, typ MsgType, body ser.Writeable) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteHeaderBody(&buf, c, typ, body, ser.ProtocolVersionLocal, nil))
	return buf.Bytes()
}

func TestStreamReaderSkipsUnknownType(t *testing.T) {
	c := testCodec()

	var stream bytes.Buffer
	stream.Write([]byte{97, 61, 200, 0, 0, 0, 0, 0, 0, 0, 10})
	stream.Write(bytes.Repeat([]byte{0xEE}, 10))
	stream.Write(frame(t, c, MsgPing, &Ping{TotalDifficulty: 3, Height: 4}))

	sr := NewStreamReader(&stream, c, ser.ProtocolVersionLocal)

	wrapper, err := sr.ReadHeader()
	require.NoError(t, err)
	unknown, ok := wrapper.(UnknownHeader)
	require.True(t, ok, "expected UnknownHeader, got %T", wrapper)
	assert.Equal(t, uint8(200), unknown.TypeByte)
	assert.Equal(t, uint64(10), unknown.BodyLen())
	require.NoError(t, sr.Discard(unknown.BodyLen()))

	wrapper, err = sr.ReadHeader()
	require.NoError(t, err)
	known, ok := wrapper.(KnownHeader)
	require.True(t, ok)
	assert.Equal(t, MsgPing, known.Type)

	var ping Ping
	require.NoError(t, sr.ReadBody(known.Len, &ping))
	assert.Equal(t, Ping{TotalDifficulty: 3, Height: 4}, ping)

	_, err = sr.ReadHeader()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadExpectedHeader(t *testing.T) {
	c := testCodec()
	pong := frame(t, c, MsgPong, &Pong{})

	tests := []struct {
		name    string
		stream  []byte
		want    MsgType
		wantErr error
	}{
		{"match", pong, MsgPong, nil},
		{"mismatch", pong, MsgPing, ErrBadMessage},
		{"unknown", []byte{97, 61, 99, 0, 0, 0, 0, 0, 0, 0, 0}, MsgPing, ErrBadMessage},
		{"bad magic", []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 0, 0}, MsgPing, ErrBadMagic},
		{"truncated", pong[:5], MsgPong, io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := NewStreamReader(bytes.NewReader(tt.stream), c, ser.ProtocolVersionLocal)
			h, err := sr.ReadExpectedHeader(tt.want)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Type)
		})
	}
}

func TestReadMessage(t *testing.T) {
	c := testCodec()
	want := &TxHashSetRequest{Hash: core.HashOf([]byte("x")), Height: 12}
	stream := frame(t, c, MsgTxHashSetRequest, want)

	var got TxHashSetRequest
	require.NoError(t, ReadMessage(bytes.NewReader(stream), c, ser.ProtocolVersionLocal, MsgTxHashSetRequest, &got))
	assert.Equal(t, *want, got)

	err := ReadMessage(bytes.NewReader(stream), c, ser.ProtocolVersionLocal, MsgPing, &Ping{})
	assert.ErrorIs(t, err, ErrBadMessage)
}

func TestReadBodyShort(t *testing.T) {
	c := testCodec()
	stream := frame(t, c, MsgPing, &Ping{})

	sr := NewStreamReader(bytes.NewReader(stream[:HeaderLen+8]), c, ser.ProtocolVersionLocal)
	h, err := sr.ReadExpectedHeader(MsgPing)
	require.NoError(t, err)

	err = sr.ReadBody(h.Len, &Ping{})
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
}

func TestStreamReaderVersion(t *testing.T) {
	sr := NewStreamReader(bytes.NewReader(nil), testCodec(), 1)
	assert.Equal(t, ser.ProtocolVersion(1), sr.Version())
	sr.SetVersion(ser.ProtocolVersionLocal)
	assert.Equal(t, ser.ProtocolVersionLocal, sr.Version())
}
