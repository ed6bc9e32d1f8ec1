package node

import (
	"sort"
	"sync"

	"github.com/ZentaChain/mwnode/pkg/protocol"
)

// PeerBook is the set of peer addresses learned from handshakes and
// PeerAddrs messages.
type PeerBook struct {
	mu    sync.RWMutex
	peers map[protocol.PeerAddr]protocol.Capabilities
}

func NewPeerBook() *PeerBook {
	return &PeerBook{peers: make(map[protocol.PeerAddr]protocol.Capabilities)}
}

// Add records addr. Capabilities learned earlier are merged.
func (b *PeerBook) Add(addr protocol.PeerAddr, caps protocol.Capabilities) {
	if !addr.IsValid() || addr.Addr().IsUnspecified() {
		return
	}
	b.mu.Lock()
	b.peers[addr] |= caps
	b.mu.Unlock()
}

func (b *PeerBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// List returns up to max addresses whose capabilities contain caps, in a
// stable order.
func (b *PeerBook) List(caps protocol.Capabilities, max int) []protocol.PeerAddr {
	b.mu.RLock()
	out := make([]protocol.PeerAddr, 0, len(b.peers))
	for addr, have := range b.peers {
		if have.Contains(caps) {
			out = append(out, addr)
		}
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].AddrPort.Compare(out[j].AddrPort) < 0
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}
