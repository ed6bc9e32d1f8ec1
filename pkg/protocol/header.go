package protocol

import (
	"errors"
	"fmt"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// HeaderLen is the size of an encoded header: 2 magic bytes, 1 type byte
// and an 8-byte body length.
const HeaderLen = 2 + 1 + 8

var (
	ErrBadMagic   = errors.New("protocol: invalid magic")
	ErrBadMessage = errors.New("protocol: unexpected message")
)

// Header is the header of a known message type.
type Header struct {
	Magic [2]byte
	Type  MsgType
	Len   uint64 // body length in bytes
}

// NewHeader creates a header for a body of length n on this codec's network.
func (c *Codec) NewHeader(t MsgType, n uint64) Header {
	return Header{
		Magic: c.magic,
		Type:  t,
		Len:   n,
	}
}

// Write implements ser.Writeable.
func (h Header) Write(w ser.Writer) error {
	if err := w.WriteU8(h.Magic[0]); err != nil {
		return err
	}
	if err := w.WriteU8(h.Magic[1]); err != nil {
		return err
	}
	if err := w.WriteU8(uint8(h.Type)); err != nil {
		return err
	}
	return w.WriteU64(h.Len)
}

// Encode encodes the header to bytes.
func (h Header) Encode() []byte {
	w := ser.NewBinWriterBuffer(make([]byte, 0, HeaderLen), ser.ProtocolVersionLocal)
	_ = h.Write(w)
	return w.Bytes()
}

// HeaderWrapper is the result of decoding a header: either a KnownHeader or
// an UnknownHeader.
type HeaderWrapper interface {
	// BodyLen is the number of body bytes that follow the header.
	BodyLen() uint64
	fmt.Stringer
}

// KnownHeader wraps a header whose type we understand.
type KnownHeader struct {
	Header
}

func (h KnownHeader) BodyLen() uint64 { return h.Len }

func (h KnownHeader) String() string {
	return fmt.Sprintf("%s(%d)", h.Type, h.Len)
}

// UnknownHeader is a header of a type introduced after this node was built.
// Its body can only be skipped.
type UnknownHeader struct {
	Len      uint64
	TypeByte uint8
}

func (h UnknownHeader) BodyLen() uint64 { return h.Len }

func (h UnknownHeader) String() string {
	return fmt.Sprintf("Unknown[%d](%d)", h.TypeByte, h.Len)
}

// ReadHeader decodes a header and validates its magic and declared length.
// Declared lengths above SizeSlack times the type's limit fail with
// ser.ErrTooLargeRead. An unrecognized type byte is not an error.
func (c *Codec) ReadHeader(r ser.Reader) (HeaderWrapper, error) {
	for _, m := range c.magic {
		if _, err := r.ExpectU8(m); err != nil {
			if errors.Is(err, ser.ErrUnexpectedData) {
				return nil, fmt.Errorf("%w: %w", ErrBadMagic, err)
			}
			return nil, err
		}
	}

	t, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	msgLen, err := r.ReadU64()
	if err != nil {
		return nil, err
	}

	msgType, ok := MsgTypeFromByte(t)
	if !ok {
		maxLen := c.DefaultMaxMsgSize() * c.slack
		if msgLen > maxLen {
			c.log.Error().
				Uint8("type", t).
				Uint64("max_len", maxLen).
				Uint64("msg_len", msgLen).
				Msg("too large read (unknown msg type)")
			return nil, ser.ErrTooLargeRead
		}
		c.log.Debug().Uint8("type", t).Uint64("msg_len", msgLen).Msg("unknown msg type")
		return UnknownHeader{Len: msgLen, TypeByte: t}, nil
	}

	maxLen := c.MaxMsgSize(msgType) * c.slack
	if msgLen > maxLen {
		c.log.Error().
			Stringer("type", msgType).
			Uint64("max_len", maxLen).
			Uint64("msg_len", msgLen).
			Msg("too large read")
		return nil, ser.ErrTooLargeRead
	}

	return KnownHeader{Header{Magic: c.magic, Type: msgType, Len: msgLen}}, nil
}
