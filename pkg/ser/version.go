package ser

import "strconv"

// ProtocolVersion is the negotiated wire protocol version of a connection.
type ProtocolVersion uint32

// ProtocolVersionLocal is the version this node speaks natively.
const ProtocolVersionLocal ProtocolVersion = 3

// Write implements Writeable.
func (v ProtocolVersion) Write(w Writer) error {
	return w.WriteU32(uint32(v))
}

// Read implements Readable.
func (v *ProtocolVersion) Read(r Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	*v = ProtocolVersion(n)
	return nil
}

func (v ProtocolVersion) String() string {
	return strconv.FormatUint(uint64(v), 10)
}
