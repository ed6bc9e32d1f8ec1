package protocol

import (
	"fmt"
	"unicode/utf8"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// ReasonForBan explains why a peer banned us.
type ReasonForBan int32

const (
	BanNone ReasonForBan = iota
	BanBadBlock
	BanBadCompactBlock
	BanBadBlockHeader
	BanBadTxHashSet
	BanManualBan
	BanFraudHeight
	BanBadHandshake
)

var banReasonNames = [...]string{
	BanNone:            "None",
	BanBadBlock:        "BadBlock",
	BanBadCompactBlock: "BadCompactBlock",
	BanBadBlockHeader:  "BadBlockHeader",
	BanBadTxHashSet:    "BadTxHashSet",
	BanManualBan:       "ManualBan",
	BanFraudHeight:     "FraudHeight",
	BanBadHandshake:    "BadHandshake",
}

// ReasonForBanFromI32 maps a wire code onto a known reason.
func ReasonForBanFromI32(v int32) (ReasonForBan, bool) {
	if v >= 0 && int(v) < len(banReasonNames) {
		return ReasonForBan(v), true
	}
	return 0, false
}

func (r ReasonForBan) String() string {
	if r >= 0 && int(r) < len(banReasonNames) {
		return banReasonNames[r]
	}
	return fmt.Sprintf("ReasonForBan(%d)", int32(r))
}

// BanReason tells a peer why it is being banned.
type BanReason struct {
	Reason ReasonForBan
}

func (b *BanReason) Write(w ser.Writer) error {
	return w.WriteI32(int32(b.Reason))
}

// Read implements ser.Readable. A failed read of the code itself decodes as
// BanNone rather than an error; unknown codes are corrupted data.
func (b *BanReason) Read(r ser.Reader) error {
	code, err := r.ReadI32()
	if err != nil {
		code = int32(BanNone)
	}
	reason, ok := ReasonForBanFromI32(code)
	if !ok {
		return ser.ErrCorruptedData
	}
	b.Reason = reason
	return nil
}

// PeerError reports an issue in the communication, usually followed by
// closing the connection.
type PeerError struct {
	Code    uint32
	Message string
}

func (e *PeerError) Write(w ser.Writer) error {
	if err := w.WriteU32(e.Code); err != nil {
		return err
	}
	return w.WriteBytes([]byte(e.Message))
}

func (e *PeerError) Read(r ser.Reader) error {
	code, err := r.ReadU32()
	if err != nil {
		return err
	}
	msg, err := r.ReadBytesLenPrefix()
	if err != nil {
		return err
	}
	if !utf8.Valid(msg) {
		return ser.ErrCorruptedData
	}
	e.Code = code
	e.Message = string(msg)
	return nil
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer error %d: %s", e.Code, e.Message)
}
