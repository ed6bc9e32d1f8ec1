package core

import (
	"fmt"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// ProofSize is the number of nonces in a cuckoo cycle proof.
const ProofSize = 42

// Proof is a cuckoo cycle proof of work. Nonces are bit-packed on the wire
// using EdgeBits bits each.
type Proof struct {
	EdgeBits uint8
	Nonces   []uint64
}

func packedLen(edgeBits uint8) int {
	return (int(edgeBits)*ProofSize + 7) / 8
}

// Write implements ser.Writeable.
func (p Proof) Write(w ser.Writer) error {
	if len(p.Nonces) != ProofSize {
		return fmt.Errorf("proof has %d nonces, want %d", len(p.Nonces), ProofSize)
	}
	if err := w.WriteU8(p.EdgeBits); err != nil {
		return err
	}
	bits := make([]byte, packedLen(p.EdgeBits))
	eb := int(p.EdgeBits)
	for n, nonce := range p.Nonces {
		for bit := 0; bit < eb; bit++ {
			if nonce&(1<<uint(bit)) != 0 {
				pos := n*eb + bit
				bits[pos/8] |= 1 << uint(pos%8)
			}
		}
	}
	return w.WriteFixedBytes(bits)
}

// Read implements ser.Readable.
func (p *Proof) Read(r ser.Reader) error {
	edgeBits, err := r.ReadU8()
	if err != nil {
		return err
	}
	if edgeBits == 0 || edgeBits > 63 {
		return ser.ErrCorruptedData
	}
	bits, err := r.ReadFixedBytes(packedLen(edgeBits))
	if err != nil {
		return err
	}
	eb := int(edgeBits)
	nonces := make([]uint64, ProofSize)
	for n := range nonces {
		for bit := 0; bit < eb; bit++ {
			pos := n*eb + bit
			if bits[pos/8]&(1<<uint(pos%8)) != 0 {
				nonces[n] |= 1 << uint(bit)
			}
		}
	}
	p.EdgeBits = edgeBits
	p.Nonces = nonces
	return nil
}

// BlockHeader is the header record exchanged during header sync.
type BlockHeader struct {
	Version           uint16
	Height            uint64
	Timestamp         int64
	PrevHash          Hash
	PrevRoot          Hash
	OutputRoot        Hash
	RangeProofRoot    Hash
	KernelRoot        Hash
	TotalKernelOffset [32]byte
	OutputMMRSize     uint64
	KernelMMRSize     uint64
	TotalDifficulty   Difficulty
	SecondaryScaling  uint32
	Nonce             uint64
	Proof             Proof
}

// Write implements ser.Writeable.
func (h *BlockHeader) Write(w ser.Writer) error {
	if err := w.WriteU16(h.Version); err != nil {
		return err
	}
	if err := w.WriteU64(h.Height); err != nil {
		return err
	}
	if err := w.WriteI64(h.Timestamp); err != nil {
		return err
	}
	for _, hash := range []Hash{h.PrevHash, h.PrevRoot, h.OutputRoot, h.RangeProofRoot, h.KernelRoot} {
		if err := hash.Write(w); err != nil {
			return err
		}
	}
	if err := w.WriteFixedBytes(h.TotalKernelOffset[:]); err != nil {
		return err
	}
	if err := w.WriteU64(h.OutputMMRSize); err != nil {
		return err
	}
	if err := w.WriteU64(h.KernelMMRSize); err != nil {
		return err
	}
	if err := h.TotalDifficulty.Write(w); err != nil {
		return err
	}
	if err := w.WriteU32(h.SecondaryScaling); err != nil {
		return err
	}
	if err := w.WriteU64(h.Nonce); err != nil {
		return err
	}
	return h.Proof.Write(w)
}

// Read implements ser.Readable.
func (h *BlockHeader) Read(r ser.Reader) error {
	var err error
	if h.Version, err = r.ReadU16(); err != nil {
		return err
	}
	if h.Height, err = r.ReadU64(); err != nil {
		return err
	}
	if h.Timestamp, err = r.ReadI64(); err != nil {
		return err
	}
	for _, hash := range []*Hash{&h.PrevHash, &h.PrevRoot, &h.OutputRoot, &h.RangeProofRoot, &h.KernelRoot} {
		if err := hash.Read(r); err != nil {
			return err
		}
	}
	offset, err := r.ReadFixedBytes(len(h.TotalKernelOffset))
	if err != nil {
		return err
	}
	copy(h.TotalKernelOffset[:], offset)
	if h.OutputMMRSize, err = r.ReadU64(); err != nil {
		return err
	}
	if h.KernelMMRSize, err = r.ReadU64(); err != nil {
		return err
	}
	if err := h.TotalDifficulty.Read(r); err != nil {
		return err
	}
	if h.SecondaryScaling, err = r.ReadU32(); err != nil {
		return err
	}
	if h.Nonce, err = r.ReadU64(); err != nil {
		return err
	}
	return h.Proof.Read(r)
}

// Hash returns the BLAKE2b-256 digest of the serialized header.
func (h *BlockHeader) Hash() (Hash, error) {
	data, err := ser.Serialize(h, ser.ProtocolVersionLocal)
	if err != nil {
		return ZeroHash, err
	}
	return HashOf(data), nil
}
