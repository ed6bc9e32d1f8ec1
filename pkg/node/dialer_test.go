package node

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/protocol"
)

type memStore struct {
	mu      sync.Mutex
	peers   map[protocol.PeerAddr]string
	bans    map[protocol.PeerAddr]protocol.ReasonForBan
	defunct map[protocol.PeerAddr]int
}

func newMemStore() *memStore {
	return &memStore{
		peers:   make(map[protocol.PeerAddr]string),
		bans:    make(map[protocol.PeerAddr]protocol.ReasonForBan),
		defunct: make(map[protocol.PeerAddr]int),
	}
}

func (m *memStore) MarkDefunct(addr protocol.PeerAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defunct[addr]++
	return nil
}

func (m *memStore) defunctCount(addr protocol.PeerAddr) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defunct[addr]
}

func (m *memStore) SavePeer(addr protocol.PeerAddr, _ protocol.Capabilities, userAgent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[addr] = userAgent
	return nil
}

func (m *memStore) RecordBan(addr protocol.PeerAddr, reason protocol.ReasonForBan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[addr] = reason
	return nil
}

func (m *memStore) IsBanned(addr protocol.PeerAddr) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[addr]
	return ok, nil
}

func (m *memStore) userAgent(addr protocol.PeerAddr) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ua, ok := m.peers[addr]
	return ua, ok
}

func (m *memStore) ban(addr protocol.PeerAddr) (protocol.ReasonForBan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.bans[addr]
	return r, ok
}

func TestStoreRecordsHandshakeAndBan(t *testing.T) {
	serverStore, clientStore := newMemStore(), newMemStore()
	server := New(testCodec(), Config{Genesis: testGenesis, Store: serverStore})
	client := New(testCodec(), Config{
		Genesis:    testGenesis,
		UserAgent:  "client/1.0",
		ListenAddr: mustAddr(t, "10.1.1.1:3414"),
		Store:      clientStore,
	})

	conn, errc := servePipe(t, server)
	_, err := client.Handshake(conn, mustAddr(t, "10.2.2.2:3414"))
	require.NoError(t, err)

	ua, ok := clientStore.userAgent(mustAddr(t, "10.2.2.2:3414"))
	require.True(t, ok)
	assert.Equal(t, protocol.UserAgent, ua)

	ua, ok = serverStore.userAgent(mustAddr(t, "10.1.1.1:3414"))
	require.True(t, ok)
	assert.Equal(t, "client/1.0", ua)

	require.NoError(t, conn.SendBody(protocol.MsgBanReason, &protocol.BanReason{Reason: protocol.BanFraudHeight}))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server kept the connection open")
	}

	reason, ok := serverStore.ban(mustAddr(t, "10.1.1.1:3414"))
	require.True(t, ok)
	assert.Equal(t, protocol.BanFraudHeight, reason)
	assert.True(t, server.IsBanned(mustAddr(t, "10.1.1.1:3414")))
}

func TestMaintainConnectsAndPings(t *testing.T) {
	logger := zerolog.Nop()
	serverNode := New(testCodec(), Config{Genesis: testGenesis, Store: newMemStore()})
	server := network.NewServer(testCodec(), network.NewTracker(), serverNode.Handler, network.ServerConfig{
		ListenAddr: "127.0.0.1:0",
		Logger:     &logger,
	})
	require.NoError(t, server.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Serve(ctx) }()

	clientStore := newMemStore()
	clientNode := New(testCodec(), Config{Genesis: testGenesis, Store: clientStore})
	dialer := network.NewServer(testCodec(), nil, clientNode.Handler, network.ServerConfig{DialTimeout: time.Second})

	addr := mustAddr(t, server.Addr().String())
	done := make(chan struct{})
	go func() {
		clientNode.Maintain(ctx, dialer, addr, DialConfig{
			MinBackoff:   10 * time.Millisecond,
			MaxBackoff:   50 * time.Millisecond,
			PingInterval: 20 * time.Millisecond,
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := clientStore.userAgent(addr)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	// handshake, peer request and at least one keepalive ping
	require.Eventually(t, func() bool {
		return server.Tracker().Snapshot().MessagesReceived >= 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return dialer.Stats().ConnectedPeers == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Maintain did not stop")
	}
}

func TestMaintainSkipsBannedPeer(t *testing.T) {
	store := newMemStore()
	addr := mustAddr(t, "127.0.0.1:1")
	require.NoError(t, store.RecordBan(addr, protocol.BanManualBan))

	n := New(testCodec(), Config{Genesis: testGenesis, Store: store})
	dialer := network.NewServer(testCodec(), nil, n.Handler, network.ServerConfig{DialTimeout: time.Second})

	done := make(chan struct{})
	go func() {
		n.Maintain(context.Background(), dialer, addr, DefaultDialConfig())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Maintain dialed a banned peer")
	}
}

func TestMaintainStopsDuringSilentHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// accept and never answer the Hand
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	defer func() {
		select {
		case c := <-accepted:
			c.Close()
		default:
		}
	}()

	n := New(testCodec(), Config{Genesis: testGenesis})
	dialer := network.NewServer(testCodec(), nil, n.Handler, network.ServerConfig{DialTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Maintain(ctx, dialer, mustAddr(t, ln.Addr().String()), DefaultDialConfig())
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Maintain ignored cancellation during the handshake")
	}
}

func TestConnectFailureForgetsConn(t *testing.T) {
	server := New(testCodec(), Config{Genesis: testGenesis})
	client := New(testCodec(), Config{Genesis: testGenesis})

	clientEnd, serverEnd := net.Pipe()
	serverConn := network.NewConn(serverEnd, testCodec(), nil, network.ConnConfig{Peer: "client"})
	conn := network.NewConn(clientEnd, testCodec(), nil, network.ConnConfig{Peer: "server"})

	// answer the Hand with a Shake, then hang up before the peer request
	go func() {
		h, err := serverConn.Reader().ReadExpectedHeader(protocol.MsgHand)
		if err != nil {
			return
		}
		var hand protocol.Hand
		if err := serverConn.Reader().ReadBody(h.Len, &hand); err != nil {
			return
		}
		_ = serverConn.SendBody(protocol.MsgShake, &protocol.Shake{
			Version: server.cfg.Version,
			Genesis: testGenesis,
		})
		serverConn.Close()
	}()

	err := client.open(context.Background(), conn, mustAddr(t, "127.0.0.1:3415"))
	require.Error(t, err)

	_, ok := client.shaken.Load(conn)
	assert.False(t, ok)
}

func TestMaintainMarksUnreachablePeerDefunct(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := mustAddr(t, ln.Addr().String())
	require.NoError(t, ln.Close())

	store := newMemStore()
	n := New(testCodec(), Config{Genesis: testGenesis, Store: store})
	dialer := network.NewServer(testCodec(), nil, n.Handler, network.ServerConfig{DialTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		n.Maintain(ctx, dialer, addr, DialConfig{
			MinBackoff:   5 * time.Millisecond,
			MaxBackoff:   10 * time.Millisecond,
			DefunctAfter: 3,
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return store.defunctCount(addr) == 1 }, 5*time.Second, 10*time.Millisecond)
	// marked once, not on every later failure
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, store.defunctCount(addr))

	cancel()
	<-done
}
