// Package node answers the peer-facing side of the wire protocol: the
// handshake, heartbeats, peer exchange and kernel data transfer.
package node

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/protocol"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

var (
	ErrGenesisMismatch = errors.New("node: genesis mismatch")
	ErrSelfConnection  = errors.New("node: connected to self")
)

// ChainState is the view of the local chain advertised to peers.
type ChainState interface {
	TotalDifficulty() core.Difficulty
	Height() uint64
}

// StaticChain is a ChainState that never changes.
type StaticChain struct {
	Difficulty core.Difficulty
	Tip        uint64
}

func (s StaticChain) TotalDifficulty() core.Difficulty { return s.Difficulty }
func (s StaticChain) Height() uint64                   { return s.Tip }

// PeerStore persists peers across restarts.
type PeerStore interface {
	SavePeer(addr protocol.PeerAddr, caps protocol.Capabilities, userAgent string) error
	RecordBan(addr protocol.PeerAddr, reason protocol.ReasonForBan) error
	IsBanned(addr protocol.PeerAddr) (bool, error)
	MarkDefunct(addr protocol.PeerAddr) error
}

// Config configures a Node.
type Config struct {
	Genesis      core.Hash
	Capabilities protocol.Capabilities
	UserAgent    string
	Version      ser.ProtocolVersion
	// ListenAddr is advertised as the sender address of our Hand.
	ListenAddr protocol.PeerAddr
	Chain      ChainState
	// KernelDataPath, if set, is served in response to KernelDataRequest.
	KernelDataPath string
	// DownloadDir receives attachments sent by peers. Empty discards them.
	DownloadDir string
	// Store, if set, remembers handshaken peers and bans.
	Store  PeerStore
	Logger *zerolog.Logger
}

// Node holds state shared by every connection.
type Node struct {
	cfg   Config
	codec *protocol.Codec
	peers *PeerBook
	log   zerolog.Logger

	mu     sync.Mutex
	nonces map[uint64]struct{}
	// outbound connections that completed Handshake before Run, keyed by
	// *network.Conn with the dialed protocol.PeerAddr as value
	shaken sync.Map
}

func New(codec *protocol.Codec, cfg Config) *Node {
	if cfg.UserAgent == "" {
		cfg.UserAgent = protocol.UserAgent
	}
	if cfg.Version == 0 {
		cfg.Version = ser.ProtocolVersionLocal
	}
	if cfg.Chain == nil {
		cfg.Chain = StaticChain{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Node{
		cfg:    cfg,
		codec:  codec,
		peers:  NewPeerBook(),
		log:    logger.With().Str("component", "node").Logger(),
		nonces: make(map[uint64]struct{}),
	}
}

func (n *Node) Peers() *PeerBook {
	return n.peers
}

// Handler returns a fresh session handler for c. It fits
// network.HandlerFactory.
func (n *Node) Handler(c *network.Conn) network.Handler {
	s := &session{
		node: n,
		log:  n.log.With().Str("peer", c.Peer()).Logger(),
	}
	if v, ok := n.shaken.LoadAndDelete(c); ok {
		s.handshaken = true
		s.remote = v.(protocol.PeerAddr)
	}
	return s
}

func (n *Node) newNonce() uint64 {
	nonce := rand.Uint64()
	n.mu.Lock()
	n.nonces[nonce] = struct{}{}
	n.mu.Unlock()
	return nonce
}

func (n *Node) isOwnNonce(nonce uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.nonces[nonce]
	return ok
}

func (n *Node) forgetNonce(nonce uint64) {
	n.mu.Lock()
	delete(n.nonces, nonce)
	n.mu.Unlock()
}

// negotiate picks the version both sides speak.
func (n *Node) negotiate(theirs ser.ProtocolVersion) ser.ProtocolVersion {
	return min(theirs, n.cfg.Version)
}

// Handshake performs the outbound Hand/Shake exchange on c and switches c to
// the negotiated version. It must run before c.Run.
func (n *Node) Handshake(c *network.Conn, receiver protocol.PeerAddr) (*protocol.Shake, error) {
	nonce := n.newNonce()
	defer n.forgetNonce(nonce)

	hand := &protocol.Hand{
		Version:         n.cfg.Version,
		Capabilities:    n.cfg.Capabilities,
		Nonce:           nonce,
		Genesis:         n.cfg.Genesis,
		TotalDifficulty: n.cfg.Chain.TotalDifficulty(),
		SenderAddr:      n.cfg.ListenAddr,
		ReceiverAddr:    receiver,
		UserAgent:       n.cfg.UserAgent,
	}

	var shake protocol.Shake
	if err := c.Request(protocol.MsgHand, hand, protocol.MsgShake, &shake); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if shake.Genesis != n.cfg.Genesis {
		return nil, fmt.Errorf("%w: ours %s, theirs %s", ErrGenesisMismatch, n.cfg.Genesis, shake.Genesis)
	}

	c.SetVersion(n.negotiate(shake.Version))
	n.shaken.Store(c, receiver)
	n.peers.Add(receiver, shake.Capabilities)
	n.remember(receiver, shake.Capabilities, shake.UserAgent)
	n.log.Info().
		Str("peer", c.Peer()).
		Str("user_agent", shake.UserAgent).
		Stringer("version", c.Version()).
		Msg("handshake complete")
	return &shake, nil
}

// IsBanned reports whether the store holds an active ban for addr.
func (n *Node) IsBanned(addr protocol.PeerAddr) bool {
	if n.cfg.Store == nil {
		return false
	}
	banned, err := n.cfg.Store.IsBanned(addr)
	if err != nil {
		n.log.Warn().Err(err).Stringer("addr", addr).Msg("peer store lookup failed")
		return false
	}
	return banned
}

func (n *Node) remember(addr protocol.PeerAddr, caps protocol.Capabilities, userAgent string) {
	if n.cfg.Store == nil || !addr.IsValid() {
		return
	}
	if err := n.cfg.Store.SavePeer(addr, caps, userAgent); err != nil {
		n.log.Warn().Err(err).Stringer("addr", addr).Msg("failed to save peer")
	}
}

func (n *Node) recordBan(addr protocol.PeerAddr, reason protocol.ReasonForBan) {
	if n.cfg.Store == nil || !addr.IsValid() {
		return
	}
	if err := n.cfg.Store.RecordBan(addr, reason); err != nil {
		n.log.Warn().Err(err).Stringer("addr", addr).Msg("failed to record ban")
	}
}

func (n *Node) markDefunct(addr protocol.PeerAddr) {
	if n.cfg.Store == nil {
		return
	}
	if err := n.cfg.Store.MarkDefunct(addr); err != nil {
		n.log.Warn().Err(err).Stringer("addr", addr).Msg("failed to mark peer defunct")
		return
	}
	n.log.Info().Stringer("addr", addr).Msg("peer marked defunct")
}

// openKernelData opens the configured kernel data file as an attachment.
func (n *Node) openKernelData() (*os.File, uint64, error) {
	if n.cfg.KernelDataPath == "" {
		return nil, 0, os.ErrNotExist
	}
	f, err := os.Open(n.cfg.KernelDataPath)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, uint64(info.Size()), nil
}

// attachmentSink creates the file an inbound attachment is written to.
func (n *Node) attachmentSink(pattern string) (io.WriteCloser, string, error) {
	if n.cfg.DownloadDir == "" {
		return nopWriteCloser{io.Discard}, "", nil
	}
	f, err := os.CreateTemp(n.cfg.DownloadDir, pattern)
	if err != nil {
		return nil, "", err
	}
	return f, f.Name(), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
