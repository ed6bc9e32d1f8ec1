package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/mwnode/pkg/protocol"
)

func newTestStore(t *testing.T, banWindow time.Duration) *PeerStore {
	t.Helper()
	store, err := NewPeerStore(filepath.Join(t.TempDir(), "peers.db"), banWindow)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addr(t *testing.T, s string) protocol.PeerAddr {
	t.Helper()
	a, err := protocol.ParsePeerAddr(s)
	require.NoError(t, err)
	return a
}

func TestPeerStoreSaveAndGet(t *testing.T) {
	store := newTestStore(t, 0)
	a := addr(t, "10.0.0.1:3414")

	_, err := store.GetPeer(a)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SavePeer(a, protocol.CapFullNode, "MW/test 1.0"))
	require.NoError(t, store.SavePeer(a, protocol.CapPeerList, "MW/test 1.1"))

	rec, err := store.GetPeer(a)
	require.NoError(t, err)
	assert.Equal(t, a, rec.Addr)
	assert.Equal(t, protocol.CapPeerList, rec.Capabilities)
	assert.Equal(t, "MW/test 1.1", rec.UserAgent)
	assert.Equal(t, PeerHealthy, rec.State)
	assert.NotZero(t, rec.LastConnected)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPeerStoreBans(t *testing.T) {
	store := newTestStore(t, time.Hour)
	a := addr(t, "[2001:db8::1]:3414")

	require.NoError(t, store.SavePeer(a, protocol.CapFullNode, "ua"))
	require.NoError(t, store.RecordBan(a, protocol.BanBadHandshake))

	banned, err := store.IsBanned(a)
	require.NoError(t, err)
	assert.True(t, banned)

	rec, err := store.GetPeer(a)
	require.NoError(t, err)
	assert.Equal(t, protocol.BanBadHandshake, rec.BanReason)

	// a later handshake does not lift the ban
	require.NoError(t, store.SavePeer(a, protocol.CapFullNode, "ua"))
	banned, err = store.IsBanned(a)
	require.NoError(t, err)
	assert.True(t, banned)

	banned, err = store.IsBanned(addr(t, "10.9.9.9:1"))
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestPeerStoreExpiredBanLifted(t *testing.T) {
	store := newTestStore(t, time.Nanosecond)
	a := addr(t, "10.0.0.3:3414")

	require.NoError(t, store.RecordBan(a, protocol.BanManualBan))
	time.Sleep(1100 * time.Millisecond)

	banned, err := store.IsBanned(a)
	require.NoError(t, err)
	assert.False(t, banned)

	peers, err := store.ListPeers(PeerHealthy, protocol.CapUnknown, 10)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, a, peers[0].Addr)
}

func TestPeerStoreListPeers(t *testing.T) {
	store := newTestStore(t, 0)

	require.NoError(t, store.SavePeer(addr(t, "10.0.0.1:3414"), protocol.CapFullNode, ""))
	require.NoError(t, store.SavePeer(addr(t, "10.0.0.2:3414"), protocol.CapHeaderHist, ""))
	require.NoError(t, store.SavePeer(addr(t, "10.0.0.3:3414"), protocol.CapPeerList|protocol.CapHeaderHist, ""))
	require.NoError(t, store.SavePeer(addr(t, "10.0.0.4:3414"), protocol.CapFullNode, ""))
	require.NoError(t, store.MarkDefunct(addr(t, "10.0.0.4:3414")))

	peers, err := store.ListPeers(PeerHealthy, protocol.CapPeerList, 10)
	require.NoError(t, err)
	got := make([]string, 0, len(peers))
	for _, p := range peers {
		got = append(got, p.Addr.String())
	}
	assert.ElementsMatch(t, []string{"10.0.0.1:3414", "10.0.0.3:3414"}, got)

	peers, err = store.ListPeers(PeerDefunct, protocol.CapUnknown, 10)
	require.NoError(t, err)
	assert.Len(t, peers, 1)

	peers, err = store.ListPeers(PeerHealthy, protocol.CapUnknown, 2)
	require.NoError(t, err)
	assert.Len(t, peers, 2)
}

func TestPeerStoreDefunct(t *testing.T) {
	store := newTestStore(t, time.Hour)
	seed := addr(t, "10.0.0.7:3414")
	banned := addr(t, "10.0.0.8:3414")

	// never connected peers are recorded too
	require.NoError(t, store.MarkDefunct(seed))
	rec, err := store.GetPeer(seed)
	require.NoError(t, err)
	assert.Equal(t, PeerDefunct, rec.State)

	require.NoError(t, store.SavePeer(seed, protocol.CapFullNode, "ua"))
	rec, err = store.GetPeer(seed)
	require.NoError(t, err)
	assert.Equal(t, PeerHealthy, rec.State)

	require.NoError(t, store.RecordBan(banned, protocol.BanBadBlock))
	require.NoError(t, store.MarkDefunct(banned))
	rec, err = store.GetPeer(banned)
	require.NoError(t, err)
	assert.Equal(t, PeerBanned, rec.State)
}
