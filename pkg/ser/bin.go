package ser

import (
	"encoding/binary"
)

// BinReader reads from an in-memory byte slice. It never copies the
// underlying data except when handing out byte strings.
type BinReader struct {
	data    []byte
	off     int
	version ProtocolVersion
}

// NewBinReader creates a reader over data.
func NewBinReader(data []byte, version ProtocolVersion) *BinReader {
	return &BinReader{data: data, version: version}
}

// Remaining returns the number of unread bytes.
func (r *BinReader) Remaining() int {
	return len(r.data) - r.off
}

func (r *BinReader) ProtocolVersion() ProtocolVersion {
	return r.version
}

func (r *BinReader) next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *BinReader) ReadU8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *BinReader) ReadU16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *BinReader) ReadU32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *BinReader) ReadU64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *BinReader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *BinReader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *BinReader) ReadBytesLenPrefix() ([]byte, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	if n > MaxFixedBytesRead {
		return nil, ErrTooLargeRead
	}
	return r.ReadFixedBytes(int(n))
}

func (r *BinReader) ReadFixedBytes(n int) ([]byte, error) {
	if n > MaxFixedBytesRead {
		return nil, ErrTooLargeRead
	}
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (r *BinReader) ExpectU8(val uint8) (uint8, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	if b != val {
		return b, unexpected(val, b)
	}
	return b, nil
}

// BinWriter appends to a growable in-memory buffer.
type BinWriter struct {
	buf     []byte
	version ProtocolVersion
}

// NewBinWriter creates an empty writer.
func NewBinWriter(version ProtocolVersion) *BinWriter {
	return &BinWriter{version: version}
}

// NewBinWriterBuffer creates a writer that appends to buf[:0], reusing its
// capacity.
func NewBinWriterBuffer(buf []byte, version ProtocolVersion) *BinWriter {
	return &BinWriter{buf: buf[:0], version: version}
}

// Bytes returns the bytes written so far.
func (w *BinWriter) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *BinWriter) Len() int {
	return len(w.buf)
}

func (w *BinWriter) ProtocolVersion() ProtocolVersion {
	return w.version
}

func (w *BinWriter) WriteU8(v uint8) error {
	w.buf = append(w.buf, v)
	return nil
}

func (w *BinWriter) WriteU16(v uint16) error {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return nil
}

func (w *BinWriter) WriteU32(v uint32) error {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return nil
}

func (w *BinWriter) WriteU64(v uint64) error {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
	return nil
}

func (w *BinWriter) WriteI32(v int32) error {
	return w.WriteU32(uint32(v))
}

func (w *BinWriter) WriteI64(v int64) error {
	return w.WriteU64(uint64(v))
}

func (w *BinWriter) WriteBytes(b []byte) error {
	if err := w.WriteU64(uint64(len(b))); err != nil {
		return err
	}
	return w.WriteFixedBytes(b)
}

func (w *BinWriter) WriteFixedBytes(b []byte) error {
	w.buf = append(w.buf, b...)
	return nil
}
