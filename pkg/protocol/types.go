package protocol

import "fmt"

// MsgType identifies the kind of a message on the wire.
type MsgType uint8

// Message types. Values are part of the wire format: only append.
const (
	MsgError MsgType = iota
	MsgHand
	MsgShake
	MsgPing
	MsgPong
	MsgGetPeerAddrs
	MsgPeerAddrs
	MsgGetHeaders
	MsgHeader
	MsgHeaders
	MsgGetBlock
	MsgBlock
	MsgGetCompactBlock
	MsgCompactBlock
	MsgStemTransaction
	MsgTransaction
	MsgTxHashSetRequest
	MsgTxHashSetArchive
	MsgBanReason
	MsgGetTransaction
	MsgTransactionKernel
	MsgKernelDataRequest
	MsgKernelDataResponse
)

// Protocol constants
const (
	// Maximum number of peer addresses a peer should ever send
	MaxPeerAddrs uint32 = 256

	// Maximum number of hashes in a block locator
	MaxLocators = 20

	// Maximum number of block headers a peer should ever send
	MaxBlockHeaders = 32

	// UserAgent is advertised in our handshake messages.
	UserAgent = "MW/mwnode 0.1.0"
)

var msgTypeNames = [...]string{
	MsgError:              "Error",
	MsgHand:               "Hand",
	MsgShake:              "Shake",
	MsgPing:               "Ping",
	MsgPong:               "Pong",
	MsgGetPeerAddrs:       "GetPeerAddrs",
	MsgPeerAddrs:          "PeerAddrs",
	MsgGetHeaders:         "GetHeaders",
	MsgHeader:             "Header",
	MsgHeaders:            "Headers",
	MsgGetBlock:           "GetBlock",
	MsgBlock:              "Block",
	MsgGetCompactBlock:    "GetCompactBlock",
	MsgCompactBlock:       "CompactBlock",
	MsgStemTransaction:    "StemTransaction",
	MsgTransaction:        "Transaction",
	MsgTxHashSetRequest:   "TxHashSetRequest",
	MsgTxHashSetArchive:   "TxHashSetArchive",
	MsgBanReason:          "BanReason",
	MsgGetTransaction:     "GetTransaction",
	MsgTransactionKernel:  "TransactionKernel",
	MsgKernelDataRequest:  "KernelDataRequest",
	MsgKernelDataResponse: "KernelDataResponse",
}

// AllMsgTypes lists every known message type in code order.
func AllMsgTypes() []MsgType {
	types := make([]MsgType, len(msgTypeNames))
	for i := range types {
		types[i] = MsgType(i)
	}
	return types
}

// MsgTypeFromByte maps a raw type byte to a known type.
func MsgTypeFromByte(b uint8) (MsgType, bool) {
	if int(b) < len(msgTypeNames) {
		return MsgType(b), true
	}
	return 0, false
}

func (t MsgType) String() string {
	if int(t) < len(msgTypeNames) {
		return msgTypeNames[t]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}
