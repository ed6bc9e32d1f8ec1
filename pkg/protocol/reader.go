package protocol

import (
	"fmt"
	"io"

	pool "github.com/libp2p/go-buffer-pool"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// StreamReader reads framed messages off one connection. It is not safe for
// concurrent use; each connection owns one.
type StreamReader struct {
	r       io.Reader
	codec   *Codec
	version ser.ProtocolVersion
	hdr     [HeaderLen]byte
}

// NewStreamReader creates a reader for r.
func NewStreamReader(r io.Reader, codec *Codec, version ser.ProtocolVersion) *StreamReader {
	return &StreamReader{r: r, codec: codec, version: version}
}

func (s *StreamReader) Version() ser.ProtocolVersion {
	return s.version
}

// SetVersion switches the protocol version once it has been negotiated.
func (s *StreamReader) SetVersion(v ser.ProtocolVersion) {
	s.version = v
}

// ReadHeader reads exactly one header and validates it. The result is a
// KnownHeader or an UnknownHeader.
func (s *StreamReader) ReadHeader() (HeaderWrapper, error) {
	if _, err := io.ReadFull(s.r, s.hdr[:]); err != nil {
		return nil, err
	}
	return s.codec.ReadHeader(ser.NewBinReader(s.hdr[:], s.version))
}

// ReadExpectedHeader reads a header that must be of type t. Anything else,
// including an unknown type, fails with ErrBadMessage.
func (s *StreamReader) ReadExpectedHeader(t MsgType) (Header, error) {
	wrapper, err := s.ReadHeader()
	if err != nil {
		return Header{}, err
	}
	h, ok := wrapper.(KnownHeader)
	if !ok || h.Type != t {
		return Header{}, fmt.Errorf("%w: expected %s, got %s", ErrBadMessage, t, wrapper)
	}
	return h.Header, nil
}

// ReadRawBody reads n body bytes into a pooled buffer and passes a reader
// over them to fn. The buffer is released when fn returns, so fn must not
// retain the reader. n must come from a validated header.
func (s *StreamReader) ReadRawBody(n uint64, fn func(r *ser.BinReader) error) error {
	buf := pool.Get(int(n))
	defer pool.Put(buf)

	if _, err := io.ReadFull(s.r, buf); err != nil {
		return err
	}
	return fn(ser.NewBinReader(buf, s.version))
}

// ReadBody reads n body bytes and decodes them into body.
func (s *StreamReader) ReadBody(n uint64, body ser.Readable) error {
	return s.ReadRawBody(n, func(r *ser.BinReader) error {
		return body.Read(r)
	})
}

// Discard skips exactly n bytes, e.g. the body of an unknown message type.
func (s *StreamReader) Discard(n uint64) error {
	_, err := io.CopyN(io.Discard, s.r, int64(n))
	return err
}

// ReadMessage reads one full message of type t from r and decodes its body
// into body. It is the entry point for request/response exchanges where the
// next message on the wire is known.
func ReadMessage(r io.Reader, codec *Codec, version ser.ProtocolVersion, t MsgType, body ser.Readable) error {
	s := NewStreamReader(r, codec, version)
	h, err := s.ReadExpectedHeader(t)
	if err != nil {
		return err
	}
	return s.ReadBody(h.Len, body)
}
