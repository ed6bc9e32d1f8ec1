// Package config loads the node's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/node"
	"github.com/ZentaChain/mwnode/pkg/protocol"
)

type Config struct {
	Chain string `toml:"chain"`
	// Genesis is the hex genesis block hash peers must agree on.
	Genesis string    `toml:"genesis"`
	P2P     P2PConfig `toml:"p2p"`
	API     APIConfig `toml:"api"`
	Log     LogConfig `toml:"log"`
}

type P2PConfig struct {
	Listen         string   `toml:"listen"`
	Libp2pListen   []string `toml:"libp2p_listen"`
	Seeds          []string `toml:"seeds"`
	SizeSlack      uint64   `toml:"size_slack"`
	ChunkSize      int      `toml:"chunk_size"`
	DialTimeoutSec int      `toml:"dial_timeout_secs"`
	UserAgent      string   `toml:"user_agent"`
	KernelData     string   `toml:"kernel_data"`
	DownloadDir    string   `toml:"download_dir"`
	// PeerDB is the SQLite file peers and bans are kept in. Empty keeps
	// peers in memory only.
	PeerDB       string `toml:"peer_db"`
	BanWindowSec int    `toml:"ban_window_secs"`
	PingInterval int    `toml:"ping_interval_secs"`
}

type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

// Default returns the configuration of a mainnet node.
func Default() Config {
	return Config{
		Chain: core.Mainnet.String(),
		P2P: P2PConfig{
			Listen:         "0.0.0.0:3414",
			SizeSlack:      protocol.DefaultSizeSlack,
			ChunkSize:      protocol.AttachmentChunkSize,
			DialTimeoutSec: 10,
			UserAgent:      protocol.UserAgent,
			BanWindowSec:   3 * 60 * 60,
			PingInterval:   10,
		},
		API: APIConfig{
			Enabled: true,
			Addr:    "127.0.0.1:3413",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path, fills unset fields from Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Chain) == "" {
		c.Chain = def.Chain
	}
	if c.P2P.SizeSlack == 0 {
		c.P2P.SizeSlack = def.P2P.SizeSlack
	}
	if c.P2P.ChunkSize == 0 {
		c.P2P.ChunkSize = def.P2P.ChunkSize
	}
	if c.P2P.DialTimeoutSec == 0 {
		c.P2P.DialTimeoutSec = def.P2P.DialTimeoutSec
	}
	if c.P2P.UserAgent == "" {
		c.P2P.UserAgent = def.P2P.UserAgent
	}
	if c.P2P.BanWindowSec == 0 {
		c.P2P.BanWindowSec = def.P2P.BanWindowSec
	}
}

func Validate(cfg Config) error {
	if _, err := core.ParseChainType(cfg.Chain); err != nil {
		return fmt.Errorf("config chain invalid: %w", err)
	}
	if strings.TrimSpace(cfg.P2P.Listen) == "" && len(cfg.P2P.Libp2pListen) == 0 {
		return fmt.Errorf("p2p config needs listen or libp2p_listen")
	}
	if cfg.P2P.ChunkSize < 0 {
		return fmt.Errorf("p2p chunk_size must be positive")
	}
	if cfg.P2P.DialTimeoutSec < 0 {
		return fmt.Errorf("p2p dial_timeout_secs must be positive")
	}
	if cfg.P2P.BanWindowSec < 0 || cfg.P2P.PingInterval < 0 {
		return fmt.Errorf("p2p ban_window_secs and ping_interval_secs must not be negative")
	}
	if cfg.Genesis != "" {
		if _, err := core.HashFromHex(cfg.Genesis); err != nil {
			return fmt.Errorf("config genesis invalid: %w", err)
		}
	}
	for i, seed := range cfg.P2P.Seeds {
		if _, err := protocol.ParsePeerAddr(seed); err != nil {
			return fmt.Errorf("seed[%d] invalid: %w", i, err)
		}
	}
	if cfg.API.Enabled && strings.TrimSpace(cfg.API.Addr) == "" {
		return fmt.Errorf("api config missing addr")
	}
	return nil
}

// ChainType returns the parsed chain. Validate guarantees it succeeds.
func (c Config) ChainType() core.ChainType {
	chain, _ := core.ParseChainType(c.Chain)
	return chain
}

// GenesisHash returns the configured genesis, or the zero hash when unset.
func (c Config) GenesisHash() core.Hash {
	if c.Genesis == "" {
		return core.ZeroHash
	}
	h, _ := core.HashFromHex(c.Genesis)
	return h
}

func (c Config) CodecConfig(logger *zerolog.Logger) protocol.CodecConfig {
	return protocol.CodecConfig{
		Chain:     c.ChainType(),
		SizeSlack: c.P2P.SizeSlack,
		Logger:    logger,
	}
}

func (c Config) ConnConfig(logger *zerolog.Logger) network.ConnConfig {
	return network.ConnConfig{
		ChunkSize: c.P2P.ChunkSize,
		Logger:    logger,
	}
}

// BanWindow is how long a recorded ban keeps a peer from being dialed.
func (c Config) BanWindow() time.Duration {
	return time.Duration(c.P2P.BanWindowSec) * time.Second
}

func (c Config) DialConfig() node.DialConfig {
	cfg := node.DefaultDialConfig()
	cfg.PingInterval = time.Duration(c.P2P.PingInterval) * time.Second
	return cfg
}

func (c Config) ServerConfig(logger *zerolog.Logger) network.ServerConfig {
	return network.ServerConfig{
		ListenAddr:  c.P2P.Listen,
		DialTimeout: time.Duration(c.P2P.DialTimeoutSec) * time.Second,
		Conn:        c.ConnConfig(logger),
		Logger:      logger,
	}
}
