package protocol

import (
	"io"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// Attachment is a large payload streamed right after a message body. Each
// send reads it through an independent section reader, so one attachment
// can be shared by concurrent sends. *os.File satisfies it.
type Attachment interface {
	io.ReaderAt
}

// Msg is a framed message ready to be written: header, serialized body and
// an optional attachment. The body is immutable once built.
type Msg struct {
	Header     Header
	body       []byte
	attachment Attachment
	version    ser.ProtocolVersion
}

// NewMsg serializes body and wraps it with a header for this network.
func (c *Codec) NewMsg(t MsgType, body ser.Writeable, version ser.ProtocolVersion) (*Msg, error) {
	data, err := ser.Serialize(body, version)
	if err != nil {
		return nil, err
	}
	return &Msg{
		Header:  c.NewHeader(t, uint64(len(data))),
		body:    data,
		version: version,
	}, nil
}

// MsgFromParts rebuilds a message from a received header and body.
func MsgFromParts(header Header, body []byte, version ser.ProtocolVersion) *Msg {
	return &Msg{
		Header:  header,
		body:    body,
		version: version,
	}
}

// IntoParts deconstructs a message.
func (m *Msg) IntoParts() (Header, []byte, ser.ProtocolVersion) {
	return m.Header, m.body, m.version
}

// Body returns the serialized body. Callers must not modify it.
func (m *Msg) Body() []byte {
	return m.body
}

func (m *Msg) Version() ser.ProtocolVersion {
	return m.version
}

// AddAttachment sets the payload streamed after the body.
func (m *Msg) AddAttachment(a Attachment) {
	m.attachment = a
}

func (m *Msg) Attachment() Attachment {
	return m.attachment
}

// Decode deserializes the body into v.
func (m *Msg) Decode(v ser.Readable) error {
	return ser.Deserialize(m.body, m.version, v)
}
