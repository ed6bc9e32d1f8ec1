package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

func testHeader() *BlockHeader {
	nonces := make([]uint64, ProofSize)
	for i := range nonces {
		nonces[i] = uint64(i*7919) & (1<<29 - 1)
	}
	return &BlockHeader{
		Version:          2,
		Height:           1024,
		Timestamp:        1_600_000_000,
		PrevHash:         HashOf([]byte("prev")),
		OutputRoot:       HashOf([]byte("outputs")),
		KernelRoot:       HashOf([]byte("kernels")),
		OutputMMRSize:    5000,
		KernelMMRSize:    2500,
		TotalDifficulty:  123456,
		SecondaryScaling: 1856,
		Nonce:            0xCAFE,
		Proof:            Proof{EdgeBits: 29, Nonces: nonces},
	}
}

func TestHashOf(t *testing.T) {
	a := HashOf([]byte("abc"))
	b := HashOf([]byte("abc"))
	c := HashOf([]byte("abd"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, ZeroHash, a)
}

func TestHashHexRoundTrip(t *testing.T) {
	h := HashOf([]byte("genesis"))
	parsed, err := HashFromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = HashFromHex("abcd")
	assert.Error(t, err)
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := testHeader()
	data, err := ser.Serialize(h, ser.ProtocolVersionLocal)
	require.NoError(t, err)

	// 2+8+8 + 5*32 + 32 + 8+8+8+4+8 + 1 + ceil(42*29/8)
	assert.Equal(t, 246+1+153, len(data))

	var decoded BlockHeader
	require.NoError(t, ser.Deserialize(data, ser.ProtocolVersionLocal, &decoded))
	assert.Equal(t, *h, decoded)
}

func TestProofRejectsBadEdgeBits(t *testing.T) {
	for _, eb := range []uint8{0, 64} {
		r := ser.NewBinReader([]byte{eb}, ser.ProtocolVersionLocal)
		var p Proof
		assert.ErrorIs(t, p.Read(r), ser.ErrCorruptedData)
	}
}

func TestBlockHeaderHashStable(t *testing.T) {
	h1, err := testHeader().Hash()
	require.NoError(t, err)
	h2, err := testHeader().Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := testHeader()
	other.Height++
	h3, err := other.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestMaxBlockSize(t *testing.T) {
	assert.Equal(t, uint64(40_000/21*708), DefaultParams(Mainnet).MaxBlockSize())
	assert.Equal(t, uint64(250/21*708), DefaultParams(AutomatedTesting).MaxBlockSize())
	assert.Zero(t, Params{}.MaxBlockSize())
}

func TestParseChainType(t *testing.T) {
	tests := []struct {
		in   string
		want ChainType
	}{
		{"mainnet", Mainnet},
		{"Floonet", Floonet},
		{"testnet", Floonet},
		{"user_testing", UserTesting},
		{"automated_testing", AutomatedTesting},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChainType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "testnet" && tt.in != "Floonet" {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}

	_, err := ParseChainType("moonnet")
	assert.Error(t, err)
}
