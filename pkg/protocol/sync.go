package protocol

import (
	"math"

	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

// Locator is an ordered list of block hashes used to find the last common
// block with a peer. It is the body of GetHeaders.
type Locator struct {
	Hashes []core.Hash
}

func (l *Locator) Write(w ser.Writer) error {
	if len(l.Hashes) > MaxLocators {
		return ser.ErrTooLargeRead
	}
	if err := w.WriteU8(uint8(len(l.Hashes))); err != nil {
		return err
	}
	for _, h := range l.Hashes {
		if err := h.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func (l *Locator) Read(r ser.Reader) error {
	n, err := r.ReadU8()
	if err != nil {
		return err
	}
	if n > MaxLocators {
		return ser.ErrTooLargeRead
	}
	hashes := make([]core.Hash, n)
	for i := range hashes {
		if err := hashes[i].Read(r); err != nil {
			return err
		}
	}
	l.Hashes = hashes
	return nil
}

// Headers is a batch of block headers sent in response to GetHeaders. The
// count is only bounded by the message size limit.
type Headers struct {
	Headers []core.BlockHeader
}

func (h *Headers) Write(w ser.Writer) error {
	if len(h.Headers) > math.MaxUint16 {
		return ser.ErrTooLargeRead
	}
	if err := w.WriteU16(uint16(len(h.Headers))); err != nil {
		return err
	}
	for i := range h.Headers {
		if err := h.Headers[i].Write(w); err != nil {
			return err
		}
	}
	return nil
}

func (h *Headers) Read(r ser.Reader) error {
	n, err := r.ReadU16()
	if err != nil {
		return err
	}
	headers := make([]core.BlockHeader, n)
	for i := range headers {
		if err := headers[i].Read(r); err != nil {
			return err
		}
	}
	h.Headers = headers
	return nil
}

// HashRequest is the body of GetBlock, GetCompactBlock, GetTransaction and
// TransactionKernel. A single Header message carries a bare
// core.BlockHeader.
type HashRequest struct {
	Hash core.Hash
}

func (h *HashRequest) Write(w ser.Writer) error {
	return h.Hash.Write(w)
}

func (h *HashRequest) Read(r ser.Reader) error {
	return h.Hash.Read(r)
}
