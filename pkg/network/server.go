package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZentaChain/mwnode/pkg/protocol"
)

// HandlerFactory creates the handler for a newly accepted connection, so
// that per-connection state such as the negotiated version stays local.
type HandlerFactory func(c *Conn) Handler

// ServerConfig configures a Server.
type ServerConfig struct {
	ListenAddr  string
	DialTimeout time.Duration
	Conn        ConnConfig
	Logger      *zerolog.Logger
}

// Server accepts framed peer connections over TCP.
type Server struct {
	codec      *protocol.Codec
	tracker    *Tracker
	newHandler HandlerFactory
	cfg        ServerConfig
	log        zerolog.Logger

	listener net.Listener
	mu       sync.RWMutex
	conns    map[*Conn]struct{}
	started  time.Time
}

// NewServer creates a server. Call Listen, then Serve.
func NewServer(codec *protocol.Codec, tracker *Tracker, newHandler HandlerFactory, cfg ServerConfig) *Server {
	if tracker == nil {
		tracker = NewTracker()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	if cfg.Conn.Logger == nil {
		cfg.Conn.Logger = &logger
	}
	return &Server{
		codec:      codec,
		tracker:    tracker,
		newHandler: newHandler,
		cfg:        cfg,
		log:        logger.With().Str("component", "server").Logger(),
		conns:      make(map[*Conn]struct{}),
	}
}

func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = listener
	s.started = time.Now()
	s.log.Info().Str("addr", listener.Addr().String()).Msg("listening for peers")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes every live
// connection and waits for their read loops to finish.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	acceptDone := make(chan struct{})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-acceptDone:
		}
		s.listener.Close()
		return nil
	})
	g.Go(func() error {
		defer close(acceptDone)
		for {
			nc, err := s.listener.Accept()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			conn := NewConn(nc, s.codec, s.tracker, s.cfg.Conn)
			g.Go(func() error {
				s.handleConnection(gctx, conn)
				return nil
			})
		}
	})

	return g.Wait()
}

// Dial opens an outbound connection. The caller performs the handshake with
// Conn.Request and then hands the connection to Run.
func (s *Server) Dial(ctx context.Context, addr string) (*Conn, error) {
	d := net.Dialer{Timeout: s.cfg.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConn(nc, s.codec, s.tracker, s.cfg.Conn), nil
}

// Run serves an already established connection, such as one returned by
// Dial, with a handler from the server's factory.
func (s *Server) Run(ctx context.Context, conn *Conn) {
	s.handleConnection(ctx, conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *Conn) {
	s.track(conn, true)
	defer s.track(conn, false)

	s.log.Debug().Str("peer", conn.Peer()).Msg("peer connected")
	if err := conn.Run(ctx, s.newHandler(conn)); err != nil {
		s.log.Warn().Err(err).Str("peer", conn.Peer()).Msg("peer connection failed")
		return
	}
	s.log.Debug().Str("peer", conn.Peer()).Msg("peer disconnected")
}

func (s *Server) track(conn *Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// ServerStats summarizes the server for the status API.
type ServerStats struct {
	ListenAddr     string        `json:"listen_addr"`
	ConnectedPeers int           `json:"connected_peers"`
	Uptime         time.Duration `json:"uptime_ns"`
}

// Stats returns the current server statistics.
func (s *Server) Stats() ServerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := ServerStats{ConnectedPeers: len(s.conns)}
	if addr := s.Addr(); addr != nil {
		stats.ListenAddr = addr.String()
		stats.Uptime = time.Since(s.started)
	}
	return stats
}
