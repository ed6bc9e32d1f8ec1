// Package ser defines the binary serialization contract shared by every
// value that crosses a peer connection.
//
// All integers are fixed width and big-endian. Variable length byte strings
// are prefixed with their length as a u64. Every Reader and Writer is bound
// to a negotiated ProtocolVersion so that version-sensitive fields can change
// their wire representation without touching the framing code.
package ser

import (
	"errors"
	"fmt"
)

// MaxFixedBytesRead bounds a single ReadFixedBytes call.
const MaxFixedBytesRead = 100_000

var (
	ErrTooLargeRead   = errors.New("ser: too large read")
	ErrCorruptedData  = errors.New("ser: corrupted data")
	ErrUnexpectedData = errors.New("ser: unexpected data")
	ErrUnexpectedEOF  = errors.New("ser: unexpected end of data")
)

// Reader reads primitive values from a serialized stream.
type Reader interface {
	ReadU8() (uint8, error)
	ReadU16() (uint16, error)
	ReadU32() (uint32, error)
	ReadU64() (uint64, error)
	ReadI32() (int32, error)
	ReadI64() (int64, error)
	// ReadBytesLenPrefix reads a u64 length followed by that many bytes.
	ReadBytesLenPrefix() ([]byte, error)
	// ReadFixedBytes reads exactly n bytes. The returned slice is owned by
	// the caller.
	ReadFixedBytes(n int) ([]byte, error)
	// ExpectU8 reads one byte and fails with ErrUnexpectedData if it is
	// not val.
	ExpectU8(val uint8) (uint8, error)
	ProtocolVersion() ProtocolVersion
}

// Writer writes primitive values to a serialized stream.
type Writer interface {
	WriteU8(v uint8) error
	WriteU16(v uint16) error
	WriteU32(v uint32) error
	WriteU64(v uint64) error
	WriteI32(v int32) error
	WriteI64(v int64) error
	// WriteBytes writes a u64 length prefix followed by b.
	WriteBytes(b []byte) error
	WriteFixedBytes(b []byte) error
	ProtocolVersion() ProtocolVersion
}

// Readable is implemented by values that decode themselves from a Reader.
type Readable interface {
	Read(r Reader) error
}

// Writeable is implemented by values that encode themselves to a Writer.
type Writeable interface {
	Write(w Writer) error
}

// Serialize encodes v into a fresh byte slice.
func Serialize(v Writeable, version ProtocolVersion) ([]byte, error) {
	w := NewBinWriter(version)
	if err := v.Write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize decodes data into v. Trailing bytes are ignored, matching how
// message bodies are read.
func Deserialize(data []byte, version ProtocolVersion, v Readable) error {
	return v.Read(NewBinReader(data, version))
}

func unexpected(expected, received uint8) error {
	return fmt.Errorf("%w: expected %d, received %d", ErrUnexpectedData, expected, received)
}
