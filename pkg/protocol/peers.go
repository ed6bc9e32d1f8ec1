package protocol

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/ZentaChain/mwnode/pkg/ser"
)

// PeerAddr is the socket address of a peer.
type PeerAddr struct {
	netip.AddrPort
}

// NewPeerAddr wraps ap, unmapping IPv4-in-IPv6 addresses.
func NewPeerAddr(ap netip.AddrPort) PeerAddr {
	return PeerAddr{netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())}
}

// ParsePeerAddr accepts "host:port" or a TCP multiaddr such as
// /ip4/127.0.0.1/tcp/3414.
func ParsePeerAddr(s string) (PeerAddr, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/") {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return PeerAddr{}, fmt.Errorf("invalid multiaddr %q: %w", s, err)
		}
		addr, err := manet.ToNetAddr(ma)
		if err != nil {
			return PeerAddr{}, fmt.Errorf("unsupported multiaddr %q: %w", s, err)
		}
		tcp, ok := addr.(*net.TCPAddr)
		if !ok {
			return PeerAddr{}, fmt.Errorf("multiaddr %q is not tcp", s)
		}
		return NewPeerAddr(tcp.AddrPort()), nil
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return PeerAddr{}, fmt.Errorf("invalid peer address %q: %w", s, err)
	}
	return NewPeerAddr(ap), nil
}

// Multiaddr returns the address as /ip4|ip6/.../tcp/port.
func (p PeerAddr) Multiaddr() (multiaddr.Multiaddr, error) {
	return manet.FromNetAddr(net.TCPAddrFromAddrPort(p.AddrPort))
}

// Write implements ser.Writeable.
func (p PeerAddr) Write(w ser.Writer) error {
	addr := p.Addr().Unmap()
	if addr.Is4() {
		if err := w.WriteU8(0); err != nil {
			return err
		}
		ip := addr.As4()
		if err := w.WriteFixedBytes(ip[:]); err != nil {
			return err
		}
		return w.WriteU16(p.Port())
	}
	if err := w.WriteU8(1); err != nil {
		return err
	}
	ip := addr.As16()
	if err := w.WriteFixedBytes(ip[:]); err != nil {
		return err
	}
	return w.WriteU16(p.Port())
}

// Read implements ser.Readable.
func (p *PeerAddr) Read(r ser.Reader) error {
	v4OrV6, err := r.ReadU8()
	if err != nil {
		return err
	}
	var addr netip.Addr
	if v4OrV6 == 0 {
		ip, err := r.ReadFixedBytes(4)
		if err != nil {
			return err
		}
		addr = netip.AddrFrom4([4]byte(ip))
	} else {
		ip, err := r.ReadFixedBytes(16)
		if err != nil {
			return err
		}
		addr = netip.AddrFrom16([16]byte(ip))
	}
	port, err := r.ReadU16()
	if err != nil {
		return err
	}
	p.AddrPort = netip.AddrPortFrom(addr, port)
	return nil
}

// GetPeerAddrs asks for other peers' addresses, filtered by capabilities.
type GetPeerAddrs struct {
	Capabilities Capabilities
}

func (g *GetPeerAddrs) Write(w ser.Writer) error {
	return w.WriteU32(uint32(g.Capabilities))
}

func (g *GetPeerAddrs) Read(r ser.Reader) error {
	capab, err := r.ReadU32()
	if err != nil {
		return err
	}
	g.Capabilities = CapabilitiesFromBits(capab)
	return nil
}

// PeerAddrs answers GetPeerAddrs with addresses fresh enough to share.
type PeerAddrs struct {
	Peers []PeerAddr
}

func (p *PeerAddrs) Write(w ser.Writer) error {
	if len(p.Peers) > int(MaxPeerAddrs) {
		return ser.ErrTooLargeRead
	}
	if err := w.WriteU32(uint32(len(p.Peers))); err != nil {
		return err
	}
	for _, peer := range p.Peers {
		if err := peer.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func (p *PeerAddrs) Read(r ser.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if count > MaxPeerAddrs {
		return ser.ErrTooLargeRead
	}
	if count == 0 {
		p.Peers = []PeerAddr{}
		return nil
	}
	peers := make([]PeerAddr, count)
	for i := range peers {
		if err := peers[i].Read(r); err != nil {
			return err
		}
	}
	p.Peers = peers
	return nil
}
