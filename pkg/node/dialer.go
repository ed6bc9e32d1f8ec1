package node

import (
	"context"
	"time"

	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/protocol"
)

// DialConfig tunes Maintain.
type DialConfig struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// PingInterval is how often a live connection is pinged. Zero disables
	// keepalive pings.
	PingInterval time.Duration
	// DefunctAfter is the number of consecutive failed connects after which
	// the peer is marked defunct in the store. Zero never marks it.
	DefunctAfter int
}

func DefaultDialConfig() DialConfig {
	return DialConfig{
		MinBackoff:   time.Second,
		MaxBackoff:   30 * time.Second,
		PingInterval: 10 * time.Second,
		DefunctAfter: 5,
	}
}

// Connect dials addr, completes the handshake and asks for more peers. The
// returned Conn is ready for server.Run. Cancelling ctx aborts the exchange.
func (n *Node) Connect(ctx context.Context, server *network.Server, addr protocol.PeerAddr) (*network.Conn, error) {
	conn, err := server.Dial(ctx, addr.String())
	if err != nil {
		return nil, err
	}
	if err := n.open(ctx, conn, addr); err != nil {
		return nil, err
	}
	return conn, nil
}

// open runs the outbound exchange on a fresh conn and closes it on failure.
func (n *Node) open(ctx context.Context, conn *network.Conn, addr protocol.PeerAddr) error {
	// reads in the exchange block on the stream, closing it unblocks them
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	fail := func(err error) error {
		stop()
		n.shaken.Delete(conn)
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	if _, err := n.Handshake(conn, addr); err != nil {
		return fail(err)
	}
	if err := conn.SendBody(protocol.MsgGetPeerAddrs, &protocol.GetPeerAddrs{Capabilities: protocol.CapPeerList}); err != nil {
		return fail(err)
	}
	if !stop() {
		return fail(ctx.Err())
	}
	return nil
}

// Maintain keeps a connection to addr open until ctx is done, redialing
// with exponential backoff whenever it drops. Banned peers are not dialed.
func (n *Node) Maintain(ctx context.Context, server *network.Server, addr protocol.PeerAddr, cfg DialConfig) {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	log := n.log.With().Stringer("addr", addr).Logger()
	backoff := cfg.MinBackoff
	failures := 0

	for {
		if n.IsBanned(addr) {
			log.Info().Msg("peer is banned, not dialing")
			return
		}

		conn, err := n.Connect(ctx, server, addr)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			failures++
			log.Warn().Err(err).Int("failures", failures).Dur("retry_in", backoff).Msg("connect failed")
			if failures == cfg.DefunctAfter {
				n.markDefunct(addr)
			}
		default:
			failures = 0
			backoff = cfg.MinBackoff
			n.runWithKeepalive(ctx, server, conn, cfg.PingInterval)
			log.Info().Dur("retry_in", backoff).Msg("connection closed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, cfg.MaxBackoff)
	}
}

func (n *Node) runWithKeepalive(ctx context.Context, server *network.Server, conn *network.Conn, interval time.Duration) {
	if interval <= 0 {
		server.Run(ctx, conn)
		return
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			chain := n.cfg.Chain
			ping := &protocol.Ping{TotalDifficulty: chain.TotalDifficulty(), Height: chain.Height()}
			if err := conn.SendBody(protocol.MsgPing, ping); err != nil {
				n.log.Debug().Err(err).Str("peer", conn.Peer()).Msg("keepalive ping failed")
				conn.Close()
				return
			}
		}
	}()

	server.Run(ctx, conn)
	close(done)
}
