// Package api provides the HTTP status surface of a node.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/protocol"
)

// TrafficSource reports traffic counters.
type TrafficSource interface {
	Snapshot() network.TrafficSnapshot
}

// PeerSource reports listener statistics.
type PeerSource interface {
	Stats() network.ServerStats
}

// PeerCounter reports how many peers are persisted.
type PeerCounter interface {
	Count() (int, error)
}

// Server is the HTTP status API.
type Server struct {
	codec      *protocol.Codec
	traffic    TrafficSource
	peers      PeerSource
	router     *gin.Engine
	httpServer *http.Server
	cfg        *Config
	log        zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Addr         string
	EnableCORS   bool
	RateLimit    int // requests per minute per client, 0 disables
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	UserAgent    string
	// StoredPeers, if set, is reported by /api/v1/node.
	StoredPeers PeerCounter
	Logger      *zerolog.Logger
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:3413",
		EnableCORS:   true,
		RateLimit:    600,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		UserAgent:    protocol.UserAgent,
	}
}

// NewServer creates a status server. peers may be nil.
func NewServer(codec *protocol.Codec, traffic TrafficSource, peers PeerSource, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		codec:   codec,
		traffic: traffic,
		peers:   peers,
		router:  gin.New(),
		cfg:     config,
		log:     logger.With().Str("component", "api").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	if s.cfg.EnableCORS {
		s.router.Use(CORSMiddleware())
	}
	if s.cfg.RateLimit > 0 {
		s.router.Use(RateLimitMiddleware(NewRateLimiter(s.cfg.RateLimit)))
	}
	s.router.Use(LoggingMiddleware(s.log))
	s.router.Use(gin.Recovery())
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/traffic", s.handleTraffic)
		v1.GET("/limits", s.handleLimits)
		v1.GET("/node", s.handleNode)
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", listener.Addr().String()).Msg("status API listening")
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down status API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
