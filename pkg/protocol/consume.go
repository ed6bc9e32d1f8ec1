package protocol

import (
	"fmt"
	"io"
	"time"

	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

// AttachmentMeta describes an attachment being received.
type AttachmentMeta struct {
	Size      uint64
	Hash      core.Hash
	Height    uint64
	StartTime time.Time
	Path      string
}

// AttachmentUpdate reports receive progress of an attachment.
type AttachmentUpdate struct {
	Read uint64
	Left uint64
	Meta *AttachmentMeta
}

// Consume is an inbound event handed to a connection's handler: either a
// MessageEvent or an AttachmentEvent. Attachment bytes carry no header of
// their own, so both arrive at the same dispatch point.
type Consume interface {
	fmt.Stringer
	consume()
}

// MessageEvent carries one decoded header and a reader over its body. Body
// is only valid for the duration of the handler call.
type MessageEvent struct {
	Header Header
	Body   ser.Reader
}

func (MessageEvent) consume() {}

func (e MessageEvent) String() string {
	return e.Header.Type.String()
}

// AttachmentEvent reports that a chunk of an attachment was received.
type AttachmentEvent struct {
	Update AttachmentUpdate
}

func (AttachmentEvent) consume() {}

func (AttachmentEvent) String() string {
	return "attachment"
}

// ConsumedKind selects what the connection does after an event.
type ConsumedKind int

const (
	ConsumedNone ConsumedKind = iota
	ConsumedResponse
	ConsumedAttachment
	ConsumedDisconnect
)

// Consumed is the outcome of handling a Consume event.
type Consumed struct {
	Kind     ConsumedKind
	Response *Msg
	Meta     *AttachmentMeta
	Sink     io.Writer
}

// Respond sends msg back to the peer.
func Respond(msg *Msg) Consumed {
	return Consumed{Kind: ConsumedResponse, Response: msg}
}

// ReceiveAttachment streams the next meta.Size bytes into sink.
func ReceiveAttachment(meta *AttachmentMeta, sink io.Writer) Consumed {
	return Consumed{Kind: ConsumedAttachment, Meta: meta, Sink: sink}
}

// Disconnect closes the connection.
func Disconnect() Consumed {
	return Consumed{Kind: ConsumedDisconnect}
}

// None takes no action.
func None() Consumed {
	return Consumed{}
}
