// Package protocol implements the peer-to-peer wire protocol of the node.
//
// The protocol package defines every message that can cross a peer
// connection, the binary framing around each message, the per-type size
// ceilings that bound what a remote peer can make us allocate, and the
// streaming of large attachments after a message body.
//
// # Message Types
//
// Message types are identified by a single byte. Codes are append-only and
// are never reassigned:
//
//	0 Error              8 Header            16 TxHashSetRequest
//	1 Hand               9 Headers           17 TxHashSetArchive
//	2 Shake             10 GetBlock          18 BanReason
//	3 Ping              11 Block             19 GetTransaction
//	4 Pong              12 GetCompactBlock   20 TransactionKernel
//	5 GetPeerAddrs      13 CompactBlock      21 KernelDataRequest
//	6 PeerAddrs         14 StemTransaction   22 KernelDataResponse
//	7 GetHeaders        15 Transaction
//
// # Header Format
//
// Every message starts with an 11-byte header:
//   - Magic (2 bytes): network identifier, see MagicFor
//   - Type (1 byte): message type code
//   - Length (8 bytes): body length, big-endian
//
// A header whose type byte is not known locally still decodes, as an
// UnknownHeader carrying the declared length, so that the reader can skip
// the body of a message introduced by a newer protocol generation.
//
// # Size Limits
//
// Each type has a maximum body size derived from the chain parameters. The
// header codec rejects any declared length above SizeSlack times that limit
// before a body buffer is allocated.
//
// # Attachments
//
// TxHashSetArchive and KernelDataResponse messages are followed by a raw
// byte stream of the size they announce. The Writer streams it in bounded
// chunks and reports those bytes to the tracker's quiet counter.
//
// # Usage Example
//
//	codec := protocol.NewCodec(protocol.CodecConfig{Chain: core.Mainnet})
//
//	// Send a ping
//	ping := &protocol.Ping{TotalDifficulty: 1000, Height: 42}
//	err := protocol.WriteHeaderBody(conn, codec, protocol.MsgPing, ping, version, tracker)
//
//	// Wait for the pong
//	var pong protocol.Pong
//	err = protocol.ReadMessage(conn, codec, version, protocol.MsgPong, &pong)
package protocol
