package network

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	libnet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	libproto "github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID identifies framed wire traffic carried over libp2p streams.
const ProtocolID = libproto.ID("/mwnode/wire/3.0.0")

// NewHost creates a libp2p host listening on the given multiaddrs. A fresh
// Ed25519 identity is generated when priv is nil.
func NewHost(priv crypto.PrivKey, listenAddrs ...string) (host.Host, error) {
	if priv == nil {
		var err error
		priv, _, err = crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key pair: %w", err)
		}
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(listenAddrs...),
		libp2p.DefaultTransports,
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}
	return h, nil
}

// StreamHandler serves each inbound libp2p stream exactly like an accepted
// TCP connection.
func (s *Server) StreamHandler(ctx context.Context) libnet.StreamHandler {
	return func(stream libnet.Stream) {
		conn := NewConn(stream, s.codec, s.tracker, s.streamConfig(stream))
		s.handleConnection(ctx, conn)
	}
}

// AttachHost registers the server on h under ProtocolID.
func (s *Server) AttachHost(ctx context.Context, h host.Host) {
	h.SetStreamHandler(ProtocolID, s.StreamHandler(ctx))
	s.log.Info().Str("peer_id", h.ID().String()).Str("protocol", string(ProtocolID)).Msg("serving libp2p streams")
}

// DialStream opens a framed stream to p over h.
func (s *Server) DialStream(ctx context.Context, h host.Host, p peer.ID) (*Conn, error) {
	stream, err := h.NewStream(ctx, p, ProtocolID)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return NewConn(stream, s.codec, s.tracker, s.streamConfig(stream)), nil
}

func (s *Server) streamConfig(stream libnet.Stream) ConnConfig {
	cfg := s.cfg.Conn
	cfg.Peer = stream.Conn().RemotePeer().String()
	return cfg
}
