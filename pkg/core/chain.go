package core

import (
	"fmt"
	"strings"
)

// ChainType identifies which network a node runs on.
type ChainType int

const (
	AutomatedTesting ChainType = iota
	UserTesting
	Floonet
	Mainnet
)

const (
	// MaxBlockWeight is the consensus block weight limit.
	MaxBlockWeight uint64 = 40_000
	// TestingMaxBlockWeight applies to automated test chains.
	TestingMaxBlockWeight uint64 = 250
	// BlockOutputWeight is the weight of a single output.
	BlockOutputWeight uint64 = 21
	// outputSize is the worst-case serialized size of one output
	// including its range proof.
	outputSize uint64 = 708
)

func (c ChainType) String() string {
	switch c {
	case AutomatedTesting:
		return "automated_testing"
	case UserTesting:
		return "user_testing"
	case Floonet:
		return "floonet"
	case Mainnet:
		return "mainnet"
	default:
		return fmt.Sprintf("chain_type(%d)", int(c))
	}
}

// ParseChainType accepts the names produced by String plus "testnet" as an
// alias for floonet.
func ParseChainType(s string) (ChainType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "automated_testing", "automatedtesting":
		return AutomatedTesting, nil
	case "user_testing", "usertesting":
		return UserTesting, nil
	case "floonet", "testnet":
		return Floonet, nil
	case "mainnet", "":
		return Mainnet, nil
	default:
		return Mainnet, fmt.Errorf("unknown chain type %q", s)
	}
}

// Params are the chain parameters the wire layer derives size limits from.
type Params struct {
	MaxBlockWeight    uint64
	BlockOutputWeight uint64
}

// DefaultParams returns the consensus parameters for chain.
func DefaultParams(chain ChainType) Params {
	p := Params{
		MaxBlockWeight:    MaxBlockWeight,
		BlockOutputWeight: BlockOutputWeight,
	}
	if chain == AutomatedTesting {
		p.MaxBlockWeight = TestingMaxBlockWeight
	}
	return p
}

// MaxBlockSize is the theoretical byte size of a block filled with outputs.
func (p Params) MaxBlockSize() uint64 {
	if p.BlockOutputWeight == 0 {
		return 0
	}
	return p.MaxBlockWeight / p.BlockOutputWeight * outputSize
}
