package node

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/protocol"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

// session is the handler of one connection.
type session struct {
	node       *Node
	log        zerolog.Logger
	handshaken bool
	// remote is the peer's listening address: the dialed address for
	// outbound connections, the Hand sender otherwise.
	remote protocol.PeerAddr

	sink     io.WriteCloser
	sinkPath string
}

var _ network.AttachmentAborter = (*session)(nil)

func (s *session) Consume(ctx context.Context, c *network.Conn, ev protocol.Consume) (protocol.Consumed, error) {
	switch ev := ev.(type) {
	case protocol.MessageEvent:
		return s.onMessage(c, ev)
	case protocol.AttachmentEvent:
		return s.onAttachment(ev.Update)
	default:
		return protocol.None(), nil
	}
}

func (s *session) onMessage(c *network.Conn, ev protocol.MessageEvent) (protocol.Consumed, error) {
	if !s.handshaken && ev.Header.Type != protocol.MsgHand {
		s.log.Warn().Stringer("type", ev.Header.Type).Msg("message before handshake")
		return protocol.Disconnect(), nil
	}

	switch ev.Header.Type {
	case protocol.MsgHand:
		return s.onHand(c, ev.Body)

	case protocol.MsgPing:
		var ping protocol.Ping
		if err := ping.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		chain := s.node.cfg.Chain
		return s.respond(c, protocol.MsgPong, &protocol.Pong{
			TotalDifficulty: chain.TotalDifficulty(),
			Height:          chain.Height(),
		})

	case protocol.MsgPong:
		var pong protocol.Pong
		if err := pong.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		s.log.Debug().Uint64("height", pong.Height).Stringer("difficulty", pong.TotalDifficulty).Msg("pong")
		return protocol.None(), nil

	case protocol.MsgGetPeerAddrs:
		var req protocol.GetPeerAddrs
		if err := req.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		peers := s.node.peers.List(req.Capabilities, int(protocol.MaxPeerAddrs))
		return s.respond(c, protocol.MsgPeerAddrs, &protocol.PeerAddrs{Peers: peers})

	case protocol.MsgPeerAddrs:
		var resp protocol.PeerAddrs
		if err := resp.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		for _, addr := range resp.Peers {
			s.node.peers.Add(addr, protocol.CapUnknown)
		}
		return protocol.None(), nil

	case protocol.MsgKernelDataRequest:
		return s.onKernelDataRequest(c)

	case protocol.MsgKernelDataResponse:
		var resp protocol.KernelDataResponse
		if err := resp.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		return s.receive("kernel-data-*.bin", &protocol.AttachmentMeta{Size: resp.Bytes})

	case protocol.MsgTxHashSetArchive:
		var archive protocol.TxHashSetArchive
		if err := archive.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		return s.receive("txhashset-*.zip", &protocol.AttachmentMeta{
			Size:   archive.Bytes,
			Hash:   archive.Hash,
			Height: archive.Height,
		})

	case protocol.MsgBanReason:
		var ban protocol.BanReason
		if err := ban.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		s.log.Warn().Stringer("reason", ban.Reason).Msg("banned by peer")
		s.node.recordBan(s.remote, ban.Reason)
		return protocol.Disconnect(), nil

	case protocol.MsgError:
		var perr protocol.PeerError
		if err := perr.Read(ev.Body); err != nil {
			return protocol.None(), err
		}
		s.log.Warn().Uint32("code", perr.Code).Str("message", perr.Message).Msg("peer error")
		return protocol.None(), nil

	default:
		s.log.Debug().Stringer("type", ev.Header.Type).Uint64("len", ev.Header.Len).Msg("ignoring message")
		return protocol.None(), nil
	}
}

func (s *session) onHand(c *network.Conn, body ser.Reader) (protocol.Consumed, error) {
	var hand protocol.Hand
	if err := hand.Read(body); err != nil {
		return protocol.None(), err
	}
	if s.node.isOwnNonce(hand.Nonce) {
		s.log.Debug().Err(ErrSelfConnection).Msg("dropping connection")
		return protocol.Disconnect(), nil
	}
	if hand.Genesis != s.node.cfg.Genesis {
		s.log.Warn().Err(ErrGenesisMismatch).Stringer("genesis", hand.Genesis).Msg("peer on a different chain")
		if err := c.SendBody(protocol.MsgBanReason, &protocol.BanReason{Reason: protocol.BanBadHandshake}); err != nil {
			return protocol.None(), err
		}
		return protocol.Disconnect(), nil
	}

	shake, err := c.Codec().NewMsg(protocol.MsgShake, &protocol.Shake{
		Version:         s.node.cfg.Version,
		Capabilities:    s.node.cfg.Capabilities,
		Genesis:         s.node.cfg.Genesis,
		TotalDifficulty: s.node.cfg.Chain.TotalDifficulty(),
		UserAgent:       s.node.cfg.UserAgent,
	}, c.Version())
	if err != nil {
		return protocol.None(), err
	}

	c.SetVersion(s.node.negotiate(hand.Version))
	s.handshaken = true
	s.remote = hand.SenderAddr
	s.node.peers.Add(hand.SenderAddr, hand.Capabilities)
	s.node.remember(hand.SenderAddr, hand.Capabilities, hand.UserAgent)
	s.log.Info().
		Str("user_agent", hand.UserAgent).
		Stringer("version", c.Version()).
		Stringer("sender", hand.SenderAddr).
		Msg("accepted handshake")
	return protocol.Respond(shake), nil
}

func (s *session) onKernelDataRequest(c *network.Conn) (protocol.Consumed, error) {
	f, size, err := s.node.openKernelData()
	if err != nil {
		s.log.Debug().Err(err).Msg("no kernel data to serve")
		return protocol.None(), nil
	}
	msg, err := c.Codec().NewMsg(protocol.MsgKernelDataResponse, &protocol.KernelDataResponse{Bytes: size}, c.Version())
	if err != nil {
		f.Close()
		return protocol.None(), err
	}
	msg.AddAttachment(io.NewSectionReader(f, 0, int64(size)))

	// The response is written before the next read, so the file can be
	// closed once Send returns.
	if err := c.Send(msg); err != nil {
		f.Close()
		return protocol.None(), err
	}
	return protocol.None(), f.Close()
}

func (s *session) receive(pattern string, meta *protocol.AttachmentMeta) (protocol.Consumed, error) {
	if meta.Size == 0 {
		return protocol.None(), nil
	}
	sink, path, err := s.node.attachmentSink(pattern)
	if err != nil {
		return protocol.None(), fmt.Errorf("create attachment file: %w", err)
	}
	meta.StartTime = time.Now()
	meta.Path = path
	s.sink, s.sinkPath = sink, path
	return protocol.ReceiveAttachment(meta, sink), nil
}

func (s *session) onAttachment(u protocol.AttachmentUpdate) (protocol.Consumed, error) {
	if u.Left > 0 {
		return protocol.None(), nil
	}
	err := s.sink.Close()
	s.log.Info().
		Uint64("size", u.Read).
		Str("path", s.sinkPath).
		Dur("took", time.Since(u.Meta.StartTime)).
		Msg("attachment received")
	s.sink, s.sinkPath = nil, ""
	return protocol.None(), err
}

// AbortAttachment drops a partially received file.
func (s *session) AbortAttachment(meta *protocol.AttachmentMeta, read uint64) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Close(); err != nil {
		s.log.Debug().Err(err).Msg("closing partial attachment")
	}
	if s.sinkPath != "" {
		if err := os.Remove(s.sinkPath); err != nil {
			s.log.Warn().Err(err).Str("path", s.sinkPath).Msg("failed to remove partial attachment")
		}
	}
	s.log.Warn().
		Uint64("read", read).
		Uint64("size", meta.Size).
		Str("path", s.sinkPath).
		Msg("attachment incomplete, discarded")
	s.sink, s.sinkPath = nil, ""
}

func (s *session) respond(c *network.Conn, t protocol.MsgType, body ser.Writeable) (protocol.Consumed, error) {
	msg, err := c.Codec().NewMsg(t, body, c.Version())
	if err != nil {
		return protocol.None(), err
	}
	return protocol.Respond(msg), nil
}
