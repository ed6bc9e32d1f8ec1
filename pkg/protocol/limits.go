package protocol

import "github.com/ZentaChain/mwnode/pkg/core"

// Serialized sizes used by the limit table.
const (
	hashLen        = core.HashSize
	peerAddrMaxLen = 1 + 16 + 2
	headerMaxLen   = 365
)

// maxMsgSize returns the largest body we expect for t.
func maxMsgSize(t MsgType, p core.Params) uint64 {
	switch t {
	case MsgError:
		return 0
	case MsgHand:
		return 128
	case MsgShake:
		return 88
	case MsgPing, MsgPong:
		return 16
	case MsgGetPeerAddrs:
		return 4
	case MsgPeerAddrs:
		return 4 + peerAddrMaxLen*uint64(MaxPeerAddrs)
	case MsgGetHeaders:
		return 1 + hashLen*MaxLocators
	case MsgHeader:
		return headerMaxLen
	case MsgHeaders:
		return 2 + headerMaxLen*MaxBlockHeaders
	case MsgGetBlock, MsgGetCompactBlock, MsgGetTransaction, MsgTransactionKernel:
		return hashLen
	case MsgBlock, MsgStemTransaction, MsgTransaction:
		return p.MaxBlockSize()
	case MsgCompactBlock:
		return p.MaxBlockSize() / 10
	case MsgTxHashSetRequest:
		return 40
	case MsgTxHashSetArchive, MsgBanReason:
		return 64
	case MsgKernelDataRequest:
		return 0
	case MsgKernelDataResponse:
		return 8
	default:
		return defaultMaxMsgSize(p)
	}
}

// defaultMaxMsgSize bounds messages whose type we do not know.
func defaultMaxMsgSize(p core.Params) uint64 {
	return p.MaxBlockSize()
}

// MaxMsgSize returns the body size limit of t under the current params,
// before slack is applied.
func (c *Codec) MaxMsgSize(t MsgType) uint64 {
	return maxMsgSize(t, c.Params())
}

// DefaultMaxMsgSize returns the body size limit for unknown types, before
// slack is applied.
func (c *Codec) DefaultMaxMsgSize() uint64 {
	return defaultMaxMsgSize(c.Params())
}

// Limit describes the size ceiling of one message type.
type Limit struct {
	Type    MsgType `json:"-"`
	Name    string  `json:"type"`
	Code    uint8   `json:"code"`
	MaxSize uint64  `json:"max_size"`
	MaxRead uint64  `json:"max_read"`
}

// Limits returns the full size limit table under the current params.
func (c *Codec) Limits() []Limit {
	p := c.Params()
	types := AllMsgTypes()
	out := make([]Limit, 0, len(types))
	for _, t := range types {
		max := maxMsgSize(t, p)
		out = append(out, Limit{
			Type:    t,
			Name:    t.String(),
			Code:    uint8(t),
			MaxSize: max,
			MaxRead: max * c.slack,
		})
	}
	return out
}
