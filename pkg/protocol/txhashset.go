package protocol

import (
	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

// TxHashSetRequest asks for an archive of the txhashset at a block, needed
// to bootstrap a new node.
type TxHashSetRequest struct {
	Hash   core.Hash
	Height uint64
}

func (t *TxHashSetRequest) Write(w ser.Writer) error {
	if err := t.Hash.Write(w); err != nil {
		return err
	}
	return w.WriteU64(t.Height)
}

func (t *TxHashSetRequest) Read(r ser.Reader) error {
	if err := t.Hash.Read(r); err != nil {
		return err
	}
	height, err := r.ReadU64()
	if err != nil {
		return err
	}
	t.Height = height
	return nil
}

// TxHashSetArchive answers a TxHashSetRequest. The zip archive itself,
// Bytes long, follows the message body as an attachment.
type TxHashSetArchive struct {
	Hash   core.Hash
	Height uint64
	Bytes  uint64
}

func (t *TxHashSetArchive) Write(w ser.Writer) error {
	if err := t.Hash.Write(w); err != nil {
		return err
	}
	if err := w.WriteU64(t.Height); err != nil {
		return err
	}
	return w.WriteU64(t.Bytes)
}

func (t *TxHashSetArchive) Read(r ser.Reader) error {
	if err := t.Hash.Read(r); err != nil {
		return err
	}
	var err error
	if t.Height, err = r.ReadU64(); err != nil {
		return err
	}
	t.Bytes, err = r.ReadU64()
	return err
}

// KernelDataRequest asks for the kernel data file. It has no body.
type KernelDataRequest struct{}

func (*KernelDataRequest) Write(ser.Writer) error { return nil }

func (*KernelDataRequest) Read(ser.Reader) error { return nil }

// KernelDataResponse announces the size of the kernel data file attached
// after the body.
type KernelDataResponse struct {
	Bytes uint64
}

func (k *KernelDataResponse) Write(w ser.Writer) error {
	return w.WriteU64(k.Bytes)
}

func (k *KernelDataResponse) Read(r ser.Reader) error {
	n, err := r.ReadU64()
	if err != nil {
		return err
	}
	k.Bytes = n
	return nil
}
