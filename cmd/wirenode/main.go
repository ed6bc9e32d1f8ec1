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

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZentaChain/mwnode/pkg/api"
	"github.com/ZentaChain/mwnode/pkg/config"
	"github.com/ZentaChain/mwnode/pkg/logging"
	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/node"
	"github.com/ZentaChain/mwnode/pkg/protocol"
	"github.com/ZentaChain/mwnode/pkg/storage"
)

const statusInterval = 5 * time.Minute

var (
	configPath  = flag.String("config", "", "Path to TOML config file")
	chain       = flag.String("chain", "", "Chain type (mainnet, floonet, user_testing, automated_testing)")
	listen      = flag.String("listen", "", "TCP address to accept peers on")
	apiAddr     = flag.String("api", "", "Status API address")
	libp2pAddrs = flag.String("libp2p", "", "Comma-separated multiaddrs to serve libp2p streams on")
	seeds       = flag.String("seeds", "", "Comma-separated peers to dial on startup")
	kernelData  = flag.String("kernel-data", "", "File served in response to kernel data requests")
	downloadDir = flag.String("download-dir", "", "Directory for attachments received from peers")
	peerDB      = flag.String("peer-db", "", "SQLite file to persist peers and bans in")
	logLevel    = flag.String("log-level", "", "Log level")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wirenode: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig("wirenode")
	logCfg.Level = cfg.Log.Level
	logCfg.NoColor = cfg.Log.NoColor
	logger := logging.New(logCfg)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("wirenode stopped")
	}
	logger.Info().Msg("wirenode stopped")
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if *chain != "" {
		cfg.Chain = *chain
	}
	if *listen != "" {
		cfg.P2P.Listen = *listen
	}
	if *apiAddr != "" {
		cfg.API.Addr = *apiAddr
	}
	if *libp2pAddrs != "" {
		cfg.P2P.Libp2pListen = splitList(*libp2pAddrs)
	}
	if *seeds != "" {
		cfg.P2P.Seeds = splitList(*seeds)
	}
	if *kernelData != "" {
		cfg.P2P.KernelData = *kernelData
	}
	if *downloadDir != "" {
		cfg.P2P.DownloadDir = *downloadDir
	}
	if *peerDB != "" {
		cfg.P2P.PeerDB = *peerDB
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	return cfg, config.Validate(cfg)
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	codec := protocol.NewCodec(cfg.CodecConfig(&logger))
	tracker := network.NewTracker()

	var advertised protocol.PeerAddr
	if addr, err := protocol.ParsePeerAddr(cfg.P2P.Listen); err == nil {
		advertised = addr
	}

	nodeCfg := node.Config{
		Genesis:        cfg.GenesisHash(),
		Capabilities:   protocol.CapFullNode,
		UserAgent:      cfg.P2P.UserAgent,
		ListenAddr:     advertised,
		KernelDataPath: cfg.P2P.KernelData,
		DownloadDir:    cfg.P2P.DownloadDir,
		Logger:         &logger,
	}

	var store *storage.PeerStore
	if cfg.P2P.PeerDB != "" {
		var err error
		store, err = storage.NewPeerStore(cfg.P2P.PeerDB, cfg.BanWindow())
		if err != nil {
			return err
		}
		defer store.Close()
		nodeCfg.Store = store
	}

	n := node.New(codec, nodeCfg)
	if store != nil {
		known, err := store.ListPeers(storage.PeerHealthy, protocol.CapUnknown, int(protocol.MaxPeerAddrs))
		if err != nil {
			return err
		}
		for _, rec := range known {
			n.Peers().Add(rec.Addr, rec.Capabilities)
		}
		logger.Info().Int("peers", len(known)).Str("path", cfg.P2P.PeerDB).Msg("loaded stored peers")
	}

	server := network.NewServer(codec, tracker, n.Handler, cfg.ServerConfig(&logger))

	logger.Info().
		Str("chain", codec.Chain().String()).
		Str("genesis", cfg.GenesisHash().String()).
		Uint64("size_slack", codec.SizeSlack()).
		Uint64("max_block_size", codec.Params().MaxBlockSize()).
		Msg("starting wirenode")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.P2P.Listen != "" {
		if err := server.Listen(); err != nil {
			return err
		}
		g.Go(func() error { return server.Serve(gctx) })
	}

	if len(cfg.P2P.Libp2pListen) > 0 {
		h, err := network.NewHost(nil, cfg.P2P.Libp2pListen...)
		if err != nil {
			return err
		}
		server.AttachHost(gctx, h)
		for _, addr := range h.Addrs() {
			logger.Info().Str("addr", fmt.Sprintf("%s/p2p/%s", addr, h.ID())).Msg("libp2p address")
		}
		g.Go(func() error {
			<-gctx.Done()
			return h.Close()
		})
	}

	if cfg.API.Enabled {
		apiCfg := api.DefaultConfig()
		apiCfg.Addr = cfg.API.Addr
		apiCfg.UserAgent = cfg.P2P.UserAgent
		apiCfg.Logger = &logger
		if store != nil {
			apiCfg.StoredPeers = store
		}
		status := api.NewServer(codec, tracker, server, apiCfg)
		g.Go(func() error { return status.Start(gctx) })
	}

	dialCfg := cfg.DialConfig()
	for _, seed := range cfg.P2P.Seeds {
		addr, err := protocol.ParsePeerAddr(seed)
		if err != nil {
			logger.Warn().Err(err).Str("seed", seed).Msg("skipping seed")
			continue
		}
		g.Go(func() error {
			n.Maintain(gctx, server, addr, dialCfg)
			return nil
		})
	}

	g.Go(func() error {
		statusLoop(gctx, server, tracker, n, logger)
		return nil
	})

	return g.Wait()
}

func statusLoop(ctx context.Context, server *network.Server, tracker *network.Tracker, n *node.Node, logger zerolog.Logger) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := server.Stats()
		snap := tracker.Snapshot()
		logger.Info().
			Int("connected_peers", stats.ConnectedPeers).
			Int("known_peers", n.Peers().Len()).
			Uint64("sent_bytes", snap.SentBytes).
			Uint64("received_bytes", snap.ReceivedBytes).
			Uint64("attachment_bytes", snap.QuietSentBytes+snap.QuietReceivedBytes).
			Msg("status")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
