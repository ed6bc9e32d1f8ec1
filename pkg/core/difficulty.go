package core

import (
	"strconv"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// Difficulty is an accumulated or per-block proof-of-work difficulty.
type Difficulty uint64

func (d Difficulty) String() string {
	return strconv.FormatUint(uint64(d), 10)
}

// Write implements ser.Writeable.
func (d Difficulty) Write(w ser.Writer) error {
	return w.WriteU64(uint64(d))
}

// Read implements ser.Readable.
func (d *Difficulty) Read(r ser.Reader) error {
	v, err := r.ReadU64()
	if err != nil {
		return err
	}
	*d = Difficulty(v)
	return nil
}
