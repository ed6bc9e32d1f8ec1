package api

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZentaChain/mwnode/pkg/network"
	"github.com/ZentaChain/mwnode/pkg/protocol"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

// LimitsResponse describes the size limits enforced by the header codec.
type LimitsResponse struct {
	Chain          string           `json:"chain"`
	Magic          string           `json:"magic"`
	SizeSlack      uint64           `json:"size_slack"`
	MaxBlockSize   uint64           `json:"max_block_size"`
	DefaultMaxRead uint64           `json:"default_max_read"`
	Limits         []protocol.Limit `json:"limits"`
}

// NodeResponse summarizes the node.
type NodeResponse struct {
	UserAgent       string               `json:"user_agent"`
	ProtocolVersion uint32               `json:"protocol_version"`
	Chain           string               `json:"chain"`
	Server          *network.ServerStats `json:"server,omitempty"`
	StoredPeers     *int                 `json:"stored_peers,omitempty"`
}

func (s *Server) handleTraffic(c *gin.Context) {
	c.JSON(http.StatusOK, s.traffic.Snapshot())
}

func (s *Server) handleLimits(c *gin.Context) {
	magic := s.codec.Magic()
	c.JSON(http.StatusOK, LimitsResponse{
		Chain:          s.codec.Chain().String(),
		Magic:          hex.EncodeToString(magic[:]),
		SizeSlack:      s.codec.SizeSlack(),
		MaxBlockSize:   s.codec.Params().MaxBlockSize(),
		DefaultMaxRead: s.codec.DefaultMaxMsgSize() * s.codec.SizeSlack(),
		Limits:         s.codec.Limits(),
	})
}

func (s *Server) handleNode(c *gin.Context) {
	resp := NodeResponse{
		UserAgent:       s.cfg.UserAgent,
		ProtocolVersion: uint32(ser.ProtocolVersionLocal),
		Chain:           s.codec.Chain().String(),
	}
	if s.peers != nil {
		stats := s.peers.Stats()
		resp.Server = &stats
	}
	if s.cfg.StoredPeers != nil {
		count, err := s.cfg.StoredPeers.Count()
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to count stored peers")
		} else {
			resp.StoredPeers = &count
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
