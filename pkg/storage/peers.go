// Package storage persists what a node learns about its peers.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ZentaChain/mwnode/pkg/protocol"
)

var ErrNotFound = errors.New("not found")

// PeerState is the lifecycle state of a stored peer.
type PeerState string

const (
	PeerHealthy PeerState = "healthy"
	PeerBanned  PeerState = "banned"
	PeerDefunct PeerState = "defunct"
)

// PeerRecord is one stored peer.
type PeerRecord struct {
	Addr          protocol.PeerAddr
	Capabilities  protocol.Capabilities
	UserAgent     string
	State         PeerState
	BanReason     protocol.ReasonForBan
	LastBanned    int64
	LastConnected int64
}

// PeerStore keeps peer records in SQLite.
type PeerStore struct {
	db        *sql.DB
	banWindow time.Duration
}

// NewPeerStore opens the database at dbPath. Bans older than banWindow
// (default 3 hours) no longer count.
func NewPeerStore(dbPath string, banWindow time.Duration) (*PeerStore, error) {
	if banWindow == 0 {
		banWindow = 3 * time.Hour
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open peer database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	store := &PeerStore{db: db, banWindow: banWindow}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PeerStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS peers (
		addr TEXT PRIMARY KEY,
		capabilities INTEGER NOT NULL DEFAULT 0,
		user_agent TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'healthy',
		ban_reason INTEGER NOT NULL DEFAULT 0,
		last_banned INTEGER NOT NULL DEFAULT 0,
		last_connected INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_peers_state ON peers(state);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SavePeer records a successful handshake with addr. A banned peer keeps
// its ban.
func (s *PeerStore) SavePeer(addr protocol.PeerAddr, caps protocol.Capabilities, userAgent string) error {
	query := `
		INSERT INTO peers (addr, capabilities, user_agent, state, last_connected)
		VALUES (?, ?, ?, 'healthy', ?)
		ON CONFLICT(addr) DO UPDATE SET
			capabilities = excluded.capabilities,
			user_agent = excluded.user_agent,
			state = CASE WHEN peers.state = 'banned' THEN 'banned' ELSE 'healthy' END,
			last_connected = excluded.last_connected
	`
	if _, err := s.db.Exec(query, addr.String(), uint32(caps), userAgent, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save peer: %w", err)
	}
	return nil
}

// RecordBan marks addr as banned for reason.
func (s *PeerStore) RecordBan(addr protocol.PeerAddr, reason protocol.ReasonForBan) error {
	query := `
		INSERT INTO peers (addr, state, ban_reason, last_banned)
		VALUES (?, 'banned', ?, ?)
		ON CONFLICT(addr) DO UPDATE SET
			state = 'banned',
			ban_reason = excluded.ban_reason,
			last_banned = excluded.last_banned
	`
	if _, err := s.db.Exec(query, addr.String(), int32(reason), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record ban: %w", err)
	}
	return nil
}

// MarkDefunct flags addr as unreachable until the next successful
// handshake. A banned peer stays banned.
func (s *PeerStore) MarkDefunct(addr protocol.PeerAddr) error {
	query := `
		INSERT INTO peers (addr, state) VALUES (?, 'defunct')
		ON CONFLICT(addr) DO UPDATE SET state = 'defunct'
		WHERE peers.state != 'banned'
	`
	if _, err := s.db.Exec(query, addr.String()); err != nil {
		return fmt.Errorf("failed to mark peer defunct: %w", err)
	}
	return nil
}

// GetPeer returns the record for addr, or ErrNotFound.
func (s *PeerStore) GetPeer(addr protocol.PeerAddr) (*PeerRecord, error) {
	query := `
		SELECT addr, capabilities, user_agent, state, ban_reason, last_banned, last_connected
		FROM peers WHERE addr = ?
	`
	rec, err := scanPeer(s.db.QueryRow(query, addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// IsBanned reports whether addr is banned and the ban has not expired.
func (s *PeerStore) IsBanned(addr protocol.PeerAddr) (bool, error) {
	rec, err := s.GetPeer(addr)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.State == PeerBanned && time.Since(time.Unix(rec.LastBanned, 0)) < s.banWindow, nil
}

// ListPeers returns up to limit peers in state whose capabilities include
// caps, most recently connected first. Expired bans are lifted first.
func (s *PeerStore) ListPeers(state PeerState, caps protocol.Capabilities, limit int) ([]PeerRecord, error) {
	if err := s.liftExpiredBans(); err != nil {
		return nil, err
	}

	query := `
		SELECT addr, capabilities, user_agent, state, ban_reason, last_banned, last_connected
		FROM peers
		WHERE state = ? AND (capabilities & ?) = ?
		ORDER BY last_connected DESC, addr ASC
		LIMIT ?
	`
	rows, err := s.db.Query(query, string(state), uint32(caps), uint32(caps), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}
	defer rows.Close()

	var peers []PeerRecord
	for rows.Next() {
		rec, err := scanPeer(rows)
		if err != nil {
			return nil, err
		}
		peers = append(peers, *rec)
	}
	return peers, rows.Err()
}

func (s *PeerStore) liftExpiredBans() error {
	cutoff := time.Now().Add(-s.banWindow).Unix()
	query := `UPDATE peers SET state = 'healthy' WHERE state = 'banned' AND last_banned < ?`
	if _, err := s.db.Exec(query, cutoff); err != nil {
		return fmt.Errorf("failed to lift bans: %w", err)
	}
	return nil
}

// Count returns the number of stored peers.
func (s *PeerStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM peers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count peers: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeer(row rowScanner) (*PeerRecord, error) {
	var (
		rec    PeerRecord
		addr   string
		caps   uint32
		state  string
		reason int32
	)
	if err := row.Scan(&addr, &caps, &rec.UserAgent, &state, &reason, &rec.LastBanned, &rec.LastConnected); err != nil {
		return nil, err
	}
	parsed, err := protocol.ParsePeerAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("stored peer %q: %w", addr, err)
	}
	rec.Addr = parsed
	rec.Capabilities = protocol.CapabilitiesFromBits(caps)
	rec.State = PeerState(state)
	rec.BanReason, _ = protocol.ReasonForBanFromI32(reason)
	return &rec, nil
}

// Close closes the database connection
func (s *PeerStore) Close() error {
	return s.db.Close()
}
