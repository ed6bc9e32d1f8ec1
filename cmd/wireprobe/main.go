// Command wireprobe dials a peer, performs the handshake and measures
// ping round trips.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/ZentaChain/mwnode/pkg/config"
	"github.com/ZentaChain/mwnode/pkg/logging"
	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/node"
	"github.com/ZentaChain/mwnode/pkg/protocol"
)

func main() {
	target := flag.String("addr", "127.0.0.1:3414", "Peer address (host:port, /ip4/../tcp/.. or /../p2p/<id> for libp2p)")
	chainName := flag.String("chain", "mainnet", "Chain type of the peer")
	genesis := flag.String("genesis", "", "Expected genesis hash (hex)")
	pings := flag.Int("pings", 3, "Number of pings to send")
	askPeers := flag.Bool("peers", true, "Request the peer's address list")
	timeout := flag.Duration("timeout", 10*time.Second, "Overall timeout")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logCfg := logging.DefaultConfig("wireprobe")
	logCfg.Level = *logLevel
	logger := logging.New(logCfg)

	cfg := config.Default()
	cfg.Chain = *chainName
	cfg.Genesis = *genesis
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "wireprobe: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := probe(ctx, cfg, *target, *pings, *askPeers, logger); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, cfg config.Config, target string, pings int, askPeers bool, logger zerolog.Logger) error {
	codec := protocol.NewCodec(cfg.CodecConfig(&logger))
	tracker := network.NewTracker()
	dialer := network.NewServer(codec, tracker, nil, cfg.ServerConfig(&logger))
	n := node.New(codec, node.Config{
		Genesis:   cfg.GenesisHash(),
		UserAgent: "MW/wireprobe",
		Logger:    &logger,
	})

	fmt.Println("🔎 Wire probe")
	fmt.Println("=============")
	fmt.Printf("  Chain:  %s (magic %x)\n", codec.Chain(), codec.Magic())
	fmt.Printf("  Target: %s\n", target)
	fmt.Println()

	conn, receiver, err := dial(ctx, dialer, target)
	if err != nil {
		return err
	}
	defer conn.Close()

	start := time.Now()
	shake, err := n.Handshake(conn, receiver)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Handshake in %v\n", time.Since(start).Round(time.Microsecond))
	fmt.Printf("  User agent:   %s\n", shake.UserAgent)
	fmt.Printf("  Version:      %s (negotiated %s)\n", shake.Version, conn.Version())
	fmt.Printf("  Capabilities: %#x\n", uint32(shake.Capabilities))
	fmt.Printf("  Difficulty:   %s\n", shake.TotalDifficulty)
	fmt.Println()

	for i := 0; i < pings; i++ {
		start := time.Now()
		var pong protocol.Pong
		if err := conn.Request(protocol.MsgPing, &protocol.Ping{}, protocol.MsgPong, &pong); err != nil {
			return fmt.Errorf("ping %d: %w", i, err)
		}
		fmt.Printf("  pong height=%d difficulty=%s rtt=%v\n", pong.Height, pong.TotalDifficulty, time.Since(start).Round(time.Microsecond))
	}

	if askPeers {
		var peers protocol.PeerAddrs
		err := conn.Request(protocol.MsgGetPeerAddrs, &protocol.GetPeerAddrs{Capabilities: protocol.CapPeerList},
			protocol.MsgPeerAddrs, &peers)
		if err != nil {
			return fmt.Errorf("get peers: %w", err)
		}
		fmt.Println()
		fmt.Printf("  Peers (%d):\n", len(peers.Peers))
		for _, p := range peers.Peers {
			fmt.Printf("    %s\n", p)
		}
	}

	snap := tracker.Snapshot()
	fmt.Println()
	fmt.Printf("  Sent %d bytes in %d messages, received %d bytes\n", snap.SentBytes, snap.MessagesSent, snap.ReceivedBytes)
	return nil
}

// dial connects over libp2p when target names a peer ID, over TCP otherwise.
func dial(ctx context.Context, dialer *network.Server, target string) (*network.Conn, protocol.PeerAddr, error) {
	if strings.Contains(target, "/p2p/") {
		return dialLibp2p(ctx, dialer, target)
	}
	addr, err := protocol.ParsePeerAddr(target)
	if err != nil {
		return nil, protocol.PeerAddr{}, err
	}
	conn, err := dialer.Dial(ctx, addr.String())
	return conn, addr, err
}

func dialLibp2p(ctx context.Context, dialer *network.Server, target string) (*network.Conn, protocol.PeerAddr, error) {
	ma, err := multiaddr.NewMultiaddr(target)
	if err != nil {
		return nil, protocol.PeerAddr{}, err
	}
	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return nil, protocol.PeerAddr{}, err
	}

	h, err := network.NewHost(nil, "/ip4/0.0.0.0/tcp/0")
	if err != nil {
		return nil, protocol.PeerAddr{}, err
	}
	if err := h.Connect(ctx, *info); err != nil {
		h.Close()
		return nil, protocol.PeerAddr{}, fmt.Errorf("connect %s: %w", info.ID, err)
	}
	conn, err := dialer.DialStream(ctx, h, info.ID)
	if err != nil {
		h.Close()
		return nil, protocol.PeerAddr{}, err
	}
	go func() {
		<-ctx.Done()
		h.Close()
	}()

	var receiver protocol.PeerAddr
	if len(info.Addrs) > 0 {
		if addr, err := protocol.ParsePeerAddr(info.Addrs[0].String()); err == nil {
			receiver = addr
		}
	}
	return conn, receiver, nil
}
