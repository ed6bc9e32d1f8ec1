// Package core holds the chain field types that appear inside p2p messages.
package core

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// HashSize is the size of a BLAKE2b-256 digest.
const HashSize = 32

// Hash identifies blocks, headers and kernels.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash.
var ZeroHash Hash

// HashOf returns the BLAKE2b-256 digest of data.
func HashOf(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// HashFromHex parses a 64 character hex string.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Write implements ser.Writeable.
func (h Hash) Write(w ser.Writer) error {
	return w.WriteFixedBytes(h[:])
}

// Read implements ser.Readable.
func (h *Hash) Read(r ser.Reader) error {
	b, err := r.ReadFixedBytes(HashSize)
	if err != nil {
		return err
	}
	copy(h[:], b)
	return nil
}
