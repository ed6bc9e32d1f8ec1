package protocol

import (
	"errors"
	"io"
	"math"
	"sync"

	pool "github.com/libp2p/go-buffer-pool"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// AttachmentChunkSize is the default size of each attachment write.
const AttachmentChunkSize = 8 * 1024

// Tracker accounts for bytes written to peers. Implementations must be safe
// for concurrent use by many connections.
type Tracker interface {
	// IncSent counts framed message bytes.
	IncSent(n uint64)
	// IncQuietSent counts attachment bytes, kept apart so bulk transfers do
	// not skew per-message traffic accounting.
	IncQuietSent(n uint64)
}

// WriteMessage writes header and body of msg in a single write, then
// streams its attachment, if any, in AttachmentChunkSize chunks.
func WriteMessage(w io.Writer, msg *Msg, tracker Tracker) error {
	return writeMessage(w, msg, tracker, AttachmentChunkSize)
}

// WriteHeaderBody builds a message from body and writes it.
func WriteHeaderBody(w io.Writer, codec *Codec, t MsgType, body ser.Writeable, version ser.ProtocolVersion, tracker Tracker) error {
	msg, err := codec.NewMsg(t, body, version)
	if err != nil {
		return err
	}
	return WriteMessage(w, msg, tracker)
}

func writeMessage(w io.Writer, msg *Msg, tracker Tracker, chunkSize int) error {
	n := HeaderLen + len(msg.body)
	buf := pool.Get(n)
	defer pool.Put(buf)

	bw := ser.NewBinWriterBuffer(buf, msg.version)
	if err := msg.Header.Write(bw); err != nil {
		return err
	}
	if err := bw.WriteFixedBytes(msg.body); err != nil {
		return err
	}
	if _, err := w.Write(bw.Bytes()); err != nil {
		return err
	}
	if tracker != nil {
		tracker.IncSent(uint64(n))
	}

	if msg.attachment == nil {
		return nil
	}
	return writeAttachment(w, msg.attachment, tracker, chunkSize)
}

func writeAttachment(w io.Writer, a Attachment, tracker Tracker, chunkSize int) error {
	src := io.NewSectionReader(a, 0, math.MaxInt64)
	chunk := pool.Get(chunkSize)
	defer pool.Put(chunk)

	for {
		n, err := src.Read(chunk)
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return werr
			}
			if tracker != nil {
				tracker.IncQuietSent(uint64(n))
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	// ChunkSize defaults to AttachmentChunkSize.
	ChunkSize int
}

// Writer serializes whole messages, attachments included, onto one stream
// so that concurrent senders never interleave frames.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	tracker   Tracker
	chunkSize int
}

// NewWriter creates a Writer for w. tracker may be nil.
func NewWriter(w io.Writer, tracker Tracker, cfg WriterConfig) *Writer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = AttachmentChunkSize
	}
	return &Writer{w: w, tracker: tracker, chunkSize: cfg.ChunkSize}
}

// WriteMessage writes msg, holding the stream until its attachment is fully
// sent.
func (wr *Writer) WriteMessage(msg *Msg) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return writeMessage(wr.w, msg, wr.tracker, wr.chunkSize)
}

// WriteHeaderBody builds a message from body and writes it.
func (wr *Writer) WriteHeaderBody(codec *Codec, t MsgType, body ser.Writeable, version ser.ProtocolVersion) error {
	msg, err := codec.NewMsg(t, body, version)
	if err != nil {
		return err
	}
	return wr.WriteMessage(msg)
}
