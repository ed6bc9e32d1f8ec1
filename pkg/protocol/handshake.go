package protocol

import (
	"unicode/utf8"

	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

// Capabilities is the set of optional features a peer advertises.
type Capabilities uint32

const (
	CapUnknown       Capabilities = 0
	CapHeaderHist    Capabilities = 1 << 0 // can serve full header history
	CapTxHashSetHist Capabilities = 1 << 1 // can serve a recent txhashset archive
	CapPeerList      Capabilities = 1 << 2 // can serve a list of healthy peers
	CapTxKernelHash  Capabilities = 1 << 3 // can serve tx kernels by hash

	CapFullNode = CapHeaderHist | CapTxHashSetHist | CapPeerList | CapTxKernelHash
)

// CapabilitiesFromBits drops bits we do not know about.
func CapabilitiesFromBits(bits uint32) Capabilities {
	return Capabilities(bits) & CapFullNode
}

// Contains reports whether all of other's bits are set.
func (c Capabilities) Contains(other Capabilities) bool {
	return c&other == other
}

func readUserAgent(r ser.Reader) (string, error) {
	ua, err := r.ReadBytesLenPrefix()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(ua) {
		return "", ser.ErrCorruptedData
	}
	return string(ua), nil
}

// Hand is the first part of a handshake: the sender advertises its
// version and characteristics.
type Hand struct {
	Version         ser.ProtocolVersion
	Capabilities    Capabilities
	Nonce           uint64 // random per handshake, used to detect self-connections
	Genesis         core.Hash
	TotalDifficulty core.Difficulty
	SenderAddr      PeerAddr
	ReceiverAddr    PeerAddr
	UserAgent       string
}

// Write implements ser.Writeable.
func (h *Hand) Write(w ser.Writer) error {
	if err := h.Version.Write(w); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(h.Capabilities)); err != nil {
		return err
	}
	if err := w.WriteU64(h.Nonce); err != nil {
		return err
	}
	if err := h.TotalDifficulty.Write(w); err != nil {
		return err
	}
	if err := h.SenderAddr.Write(w); err != nil {
		return err
	}
	if err := h.ReceiverAddr.Write(w); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(h.UserAgent)); err != nil {
		return err
	}
	return h.Genesis.Write(w)
}

// Read implements ser.Readable.
func (h *Hand) Read(r ser.Reader) error {
	if err := h.Version.Read(r); err != nil {
		return err
	}
	capab, err := r.ReadU32()
	if err != nil {
		return err
	}
	h.Capabilities = CapabilitiesFromBits(capab)
	if h.Nonce, err = r.ReadU64(); err != nil {
		return err
	}
	if err := h.TotalDifficulty.Read(r); err != nil {
		return err
	}
	if err := h.SenderAddr.Read(r); err != nil {
		return err
	}
	if err := h.ReceiverAddr.Read(r); err != nil {
		return err
	}
	if h.UserAgent, err = readUserAgent(r); err != nil {
		return err
	}
	return h.Genesis.Read(r)
}

// Shake is the second part of a handshake: the receiver of a Hand replies
// with its own version and characteristics.
type Shake struct {
	Version         ser.ProtocolVersion
	Capabilities    Capabilities
	Genesis         core.Hash
	TotalDifficulty core.Difficulty
	UserAgent       string
}

// Write implements ser.Writeable.
func (s *Shake) Write(w ser.Writer) error {
	if err := s.Version.Write(w); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(s.Capabilities)); err != nil {
		return err
	}
	if err := s.TotalDifficulty.Write(w); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(s.UserAgent)); err != nil {
		return err
	}
	return s.Genesis.Write(w)
}

// Read implements ser.Readable.
func (s *Shake) Read(r ser.Reader) error {
	if err := s.Version.Read(r); err != nil {
		return err
	}
	capab, err := r.ReadU32()
	if err != nil {
		return err
	}
	s.Capabilities = CapabilitiesFromBits(capab)
	if err := s.TotalDifficulty.Read(r); err != nil {
		return err
	}
	if s.UserAgent, err = readUserAgent(r); err != nil {
		return err
	}
	return s.Genesis.Read(r)
}
