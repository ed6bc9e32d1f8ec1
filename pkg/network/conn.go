package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	pool "github.com/libp2p/go-buffer-pool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZentaChain/mwnode/pkg/protocol"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

var ErrNestedAttachment = errors.New("network: attachment requested while receiving an attachment")

// Handler consumes inbound events on a connection. The body reader of a
// MessageEvent is only valid until Consume returns.
type Handler interface {
	Consume(ctx context.Context, c *Conn, ev protocol.Consume) (protocol.Consumed, error)
}

// AttachmentAborter is implemented by handlers that clean up after an
// attachment that stopped before its last byte.
type AttachmentAborter interface {
	AbortAttachment(meta *protocol.AttachmentMeta, read uint64)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, c *Conn, ev protocol.Consume) (protocol.Consumed, error)

func (f HandlerFunc) Consume(ctx context.Context, c *Conn, ev protocol.Consume) (protocol.Consumed, error) {
	return f(ctx, c, ev)
}

// ConnConfig configures a Conn.
type ConnConfig struct {
	// Version is the protocol version used until a handshake changes it.
	Version ser.ProtocolVersion
	// ChunkSize bounds attachment reads and writes.
	ChunkSize int
	// Peer labels log lines. Defaults to the remote address when known.
	Peer   string
	Logger *zerolog.Logger
}

// Conn is one framed peer connection. Sends may come from any goroutine;
// reads happen only inside Run.
type Conn struct {
	rw        io.ReadWriteCloser
	codec     *protocol.Codec
	tracker   *Tracker
	reader    *protocol.StreamReader
	writer    *protocol.Writer
	chunkSize int
	peer      string
	log       zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps rw. tracker may be nil, in which case a private one is used.
func NewConn(rw io.ReadWriteCloser, codec *protocol.Codec, tracker *Tracker, cfg ConnConfig) *Conn {
	if tracker == nil {
		tracker = NewTracker()
	}
	if cfg.Version == 0 {
		cfg.Version = ser.ProtocolVersionLocal
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = protocol.AttachmentChunkSize
	}
	if cfg.Peer == "" {
		if nc, ok := rw.(net.Conn); ok && nc.RemoteAddr() != nil {
			cfg.Peer = nc.RemoteAddr().String()
		}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Conn{
		rw:        rw,
		codec:     codec,
		tracker:   tracker,
		reader:    protocol.NewStreamReader(rw, codec, cfg.Version),
		writer:    protocol.NewWriter(rw, tracker, protocol.WriterConfig{ChunkSize: cfg.ChunkSize}),
		chunkSize: cfg.ChunkSize,
		peer:      cfg.Peer,
		log:       logger.With().Str("component", "conn").Str("peer", cfg.Peer).Logger(),
	}
}

func (c *Conn) Peer() string {
	return c.peer
}

func (c *Conn) Codec() *protocol.Codec {
	return c.codec
}

// Version returns the protocol version used to decode inbound bodies.
func (c *Conn) Version() ser.ProtocolVersion {
	return c.reader.Version()
}

// SetVersion switches the inbound protocol version, typically after the
// handshake. It must only be called from the handler or before Run.
func (c *Conn) SetVersion(v ser.ProtocolVersion) {
	c.reader.SetVersion(v)
}

// Reader exposes the framed reader for request/response exchanges that
// happen before Run, such as an outbound handshake.
func (c *Conn) Reader() *protocol.StreamReader {
	return c.reader
}

// Send writes msg and its attachment, if any.
func (c *Conn) Send(msg *protocol.Msg) error {
	if err := c.writer.WriteMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Header.Type, err)
	}
	c.tracker.CountSent(msg.Header.Type)
	return nil
}

// SendBody builds a message of type t from body and sends it.
func (c *Conn) SendBody(t protocol.MsgType, body ser.Writeable) error {
	msg, err := c.codec.NewMsg(t, body, c.Version())
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Request sends body as type t and reads the next message, which must be of
// type respType, into resp. It must not be used while Run is active.
func (c *Conn) Request(t protocol.MsgType, body ser.Writeable, respType protocol.MsgType, resp ser.Readable) error {
	if err := c.SendBody(t, body); err != nil {
		return err
	}
	h, err := c.reader.ReadExpectedHeader(respType)
	if err != nil {
		return err
	}
	c.tracker.IncReceived(protocol.HeaderLen + h.Len)
	c.tracker.CountMessage(h.Type)
	return c.reader.ReadBody(h.Len, resp)
}

// Close closes the underlying stream. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

// Run reads frames until the peer disconnects, the handler asks to
// disconnect, ctx is cancelled or an error occurs. The connection is closed
// when Run returns. A clean end of stream returns nil.
func (c *Conn) Run(ctx context.Context, h Handler) error {
	defer c.Close()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return c.readLoop(gctx, h)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			// unblock the pending read
			c.Close()
		case <-done:
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		c.log.Debug().Err(err).Msg("connection closed with error")
	}
	return err
}

func (c *Conn) readLoop(ctx context.Context, h Handler) error {
	for {
		hw, err := c.reader.ReadHeader()
		if err != nil {
			if c.isClosing(ctx, err) {
				return nil
			}
			return fmt.Errorf("read header: %w", err)
		}

		switch hdr := hw.(type) {
		case protocol.UnknownHeader:
			c.tracker.IncReceived(protocol.HeaderLen + hdr.Len)
			c.tracker.CountMessage(protocol.MsgType(hdr.TypeByte))
			c.log.Debug().Uint8("type", hdr.TypeByte).Uint64("len", hdr.Len).Msg("skipping unknown message")
			if err := c.reader.Discard(hdr.Len); err != nil {
				return fmt.Errorf("discard unknown body: %w", err)
			}

		case protocol.KnownHeader:
			out, err := c.consumeMessage(ctx, h, hdr)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			stop, err := c.apply(ctx, h, out, false)
			if err != nil || stop {
				return err
			}
		}
	}
}

func (c *Conn) consumeMessage(ctx context.Context, h Handler, hdr protocol.KnownHeader) (protocol.Consumed, error) {
	var out protocol.Consumed
	err := c.reader.ReadRawBody(hdr.Len, func(r *ser.BinReader) error {
		c.tracker.IncReceived(protocol.HeaderLen + hdr.Len)
		c.tracker.CountMessage(hdr.Type)

		var err error
		out, err = h.Consume(ctx, c, protocol.MessageEvent{Header: hdr.Header, Body: r})
		if err != nil {
			return fmt.Errorf("handle %s: %w", hdr.Type, err)
		}
		return nil
	})
	return out, err
}

// apply carries out a handler outcome. It reports whether the read loop
// should stop.
func (c *Conn) apply(ctx context.Context, h Handler, out protocol.Consumed, inAttachment bool) (bool, error) {
	switch out.Kind {
	case protocol.ConsumedNone:
		return false, nil
	case protocol.ConsumedResponse:
		if out.Response == nil {
			return false, nil
		}
		return false, c.Send(out.Response)
	case protocol.ConsumedDisconnect:
		c.log.Debug().Msg("handler requested disconnect")
		return true, nil
	case protocol.ConsumedAttachment:
		if inAttachment {
			return true, ErrNestedAttachment
		}
		return c.receiveAttachment(ctx, h, out.Meta, out.Sink)
	default:
		return true, fmt.Errorf("network: unknown consume outcome %d", out.Kind)
	}
}

// receiveAttachment reads exactly meta.Size raw bytes into sink, reporting
// progress to the handler after every chunk. If the transfer ends early the
// handler's AbortAttachment runs, or the sink is closed when the handler has
// no such hook.
func (c *Conn) receiveAttachment(ctx context.Context, h Handler, meta *protocol.AttachmentMeta, sink io.Writer) (bool, error) {
	if meta == nil {
		return true, errors.New("network: attachment without metadata")
	}
	if sink == nil {
		sink = io.Discard
	}

	buf := pool.Get(c.chunkSize)
	defer pool.Put(buf)

	var read uint64
	defer func() {
		if read >= meta.Size {
			return
		}
		c.log.Debug().Uint64("read", read).Uint64("size", meta.Size).Msg("attachment incomplete")
		if a, ok := h.(AttachmentAborter); ok {
			a.AbortAttachment(meta, read)
		} else if closer, ok := sink.(io.Closer); ok {
			closer.Close()
		}
	}()
	for read < meta.Size {
		n := uint64(len(buf))
		if left := meta.Size - read; left < n {
			n = left
		}
		if _, err := io.ReadFull(c.rw, buf[:n]); err != nil {
			return true, fmt.Errorf("read attachment: %w", err)
		}
		if _, err := sink.Write(buf[:n]); err != nil {
			return true, fmt.Errorf("write attachment: %w", err)
		}
		c.tracker.IncQuietReceived(n)
		read += n

		out, err := h.Consume(ctx, c, protocol.AttachmentEvent{Update: protocol.AttachmentUpdate{
			Read: read,
			Left: meta.Size - read,
			Meta: meta,
		}})
		if err != nil {
			return true, fmt.Errorf("handle attachment: %w", err)
		}
		if stop, err := c.apply(ctx, h, out, true); err != nil || stop {
			return true, err
		}
	}

	c.log.Debug().Uint64("size", meta.Size).Str("hash", meta.Hash.String()).Msg("attachment received")
	return false, nil
}

func (c *Conn) isClosing(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
