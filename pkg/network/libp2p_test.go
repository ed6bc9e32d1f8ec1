package network

import (
	"context"
	"testing"

	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/mwnode/pkg/protocol"
)

func TestLibp2pStreamPingPong(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mn := mocknet.New()
	defer mn.Close()

	h1, err := mn.GenPeer()
	require.NoError(t, err)
	h2, err := mn.GenPeer()
	require.NoError(t, err)
	require.NoError(t, mn.LinkAll())
	require.NoError(t, mn.ConnectAllButSelf())

	server := NewServer(testCodec(), NewTracker(), func(*Conn) Handler { return pingPongHandler() }, ServerConfig{})
	server.AttachHost(ctx, h2)

	client := NewServer(testCodec(), NewTracker(), nil, ServerConfig{})
	conn, err := client.DialStream(ctx, h1, h2.ID())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, h2.ID().String(), conn.Peer())

	var pong protocol.Pong
	require.NoError(t, conn.Request(protocol.MsgPing, &protocol.Ping{TotalDifficulty: 41, Height: 9}, protocol.MsgPong, &pong))
	assert.Equal(t, protocol.Pong{TotalDifficulty: 42, Height: 9}, pong)
	assert.Equal(t, uint64(27), server.Tracker().Snapshot().ReceivedBytes)
}
