package protocol

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ZentaChain/mwnode/pkg/core"
)

// Magic numbers expected in the header of every message.
var (
	OtherMagic   = [2]byte{73, 43}
	FloonetMagic = [2]byte{83, 59}
	MainnetMagic = [2]byte{97, 61}
)

// DefaultSizeSlack multiplies every size limit when validating a header,
// leaving room to grow messages without a protocol bump.
const DefaultSizeSlack uint64 = 4

// MagicFor returns the header magic of chain.
func MagicFor(chain core.ChainType) [2]byte {
	switch chain {
	case core.Floonet:
		return FloonetMagic
	case core.Mainnet:
		return MainnetMagic
	default:
		return OtherMagic
	}
}

// CodecConfig configures a Codec.
type CodecConfig struct {
	Chain core.ChainType
	// Params overrides the default chain parameters of Chain.
	Params *core.Params
	// SizeSlack defaults to DefaultSizeSlack.
	SizeSlack uint64
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Codec encodes and validates message headers for one network. It is safe
// for concurrent use.
type Codec struct {
	chain  core.ChainType
	magic  [2]byte
	slack  uint64
	params atomic.Pointer[core.Params]
	log    zerolog.Logger
}

// NewCodec creates a codec for cfg.Chain.
func NewCodec(cfg CodecConfig) *Codec {
	c := &Codec{
		chain: cfg.Chain,
		magic: MagicFor(cfg.Chain),
		slack: cfg.SizeSlack,
		log:   zerolog.Nop(),
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "codec").Logger()
	}
	if c.slack == 0 {
		c.slack = DefaultSizeSlack
	}
	params := core.DefaultParams(cfg.Chain)
	if cfg.Params != nil {
		params = *cfg.Params
	}
	c.params.Store(&params)
	return c
}

func (c *Codec) Chain() core.ChainType {
	return c.chain
}

func (c *Codec) Magic() [2]byte {
	return c.magic
}

func (c *Codec) SizeSlack() uint64 {
	return c.slack
}

// Params returns the chain parameters size limits are currently derived from.
func (c *Codec) Params() core.Params {
	return *c.params.Load()
}

// SetParams replaces the chain parameters, e.g. at a fork height. Limits
// are derived on every call so the change applies to the next header read.
func (c *Codec) SetParams(p core.Params) {
	c.params.Store(&p)
}
