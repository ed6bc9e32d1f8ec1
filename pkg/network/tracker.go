package network

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ZentaChain/mwnode/pkg/protocol"
)

var (
	registerOnce sync.Once

	trafficBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mwnode",
			Subsystem: "p2p",
			Name:      "bytes_total",
			Help:      "Bytes exchanged with peers.",
		},
		[]string{"direction", "kind"},
	)
	trafficMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mwnode",
			Subsystem: "p2p",
			Name:      "messages_total",
			Help:      "Framed messages exchanged with peers, by type.",
		},
		[]string{"direction", "type"},
	)
)

// RegisterMetrics registers the traffic collectors with the default
// Prometheus registry. It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(trafficBytes, trafficMessages)
	})
}

// TrafficSnapshot is a point-in-time copy of a Tracker's counters.
type TrafficSnapshot struct {
	SentBytes          uint64            `json:"sent_bytes"`
	ReceivedBytes      uint64            `json:"received_bytes"`
	QuietSentBytes     uint64            `json:"quiet_sent_bytes"`
	QuietReceivedBytes uint64            `json:"quiet_received_bytes"`
	MessagesSent       uint64            `json:"messages_sent"`
	MessagesReceived   uint64            `json:"messages_received"`
	ReceivedByType     map[string]uint64 `json:"received_by_type,omitempty"`
}

// Tracker counts traffic for one node across all of its connections.
// Framed message bytes and attachment ("quiet") bytes are kept apart.
type Tracker struct {
	sent          atomic.Uint64
	received      atomic.Uint64
	quietSent     atomic.Uint64
	quietReceived atomic.Uint64
	msgsSent      atomic.Uint64
	msgsReceived  atomic.Uint64

	mu     sync.Mutex
	byType map[protocol.MsgType]uint64
}

var _ protocol.Tracker = (*Tracker)(nil)

// NewTracker creates a tracker and registers the Prometheus collectors.
func NewTracker() *Tracker {
	RegisterMetrics()
	return &Tracker{byType: make(map[protocol.MsgType]uint64)}
}

// IncSent counts one framed message written to a peer.
func (t *Tracker) IncSent(n uint64) {
	t.sent.Add(n)
	t.msgsSent.Add(1)
	trafficBytes.WithLabelValues("sent", "message").Add(float64(n))
}

// IncQuietSent counts attachment bytes written to a peer.
func (t *Tracker) IncQuietSent(n uint64) {
	t.quietSent.Add(n)
	trafficBytes.WithLabelValues("sent", "attachment").Add(float64(n))
}

// IncReceived counts one framed message read from a peer, header included.
func (t *Tracker) IncReceived(n uint64) {
	t.received.Add(n)
	t.msgsReceived.Add(1)
	trafficBytes.WithLabelValues("received", "message").Add(float64(n))
}

// IncQuietReceived counts attachment bytes read from a peer.
func (t *Tracker) IncQuietReceived(n uint64) {
	t.quietReceived.Add(n)
	trafficBytes.WithLabelValues("received", "attachment").Add(float64(n))
}

// CountMessage records the type of an inbound message. Unknown types are
// grouped under a single label.
func (t *Tracker) CountMessage(mt protocol.MsgType) {
	t.mu.Lock()
	t.byType[mt]++
	t.mu.Unlock()
	trafficMessages.WithLabelValues("received", typeLabel(mt)).Inc()
}

// CountSent records the type of an outbound message.
func (t *Tracker) CountSent(mt protocol.MsgType) {
	trafficMessages.WithLabelValues("sent", typeLabel(mt)).Inc()
}

func typeLabel(mt protocol.MsgType) string {
	if _, ok := protocol.MsgTypeFromByte(uint8(mt)); !ok {
		return "unknown"
	}
	return mt.String()
}

// Snapshot returns the current counter values.
func (t *Tracker) Snapshot() TrafficSnapshot {
	snap := TrafficSnapshot{
		SentBytes:          t.sent.Load(),
		ReceivedBytes:      t.received.Load(),
		QuietSentBytes:     t.quietSent.Load(),
		QuietReceivedBytes: t.quietReceived.Load(),
		MessagesSent:       t.msgsSent.Load(),
		MessagesReceived:   t.msgsReceived.Load(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.byType) > 0 {
		snap.ReceivedByType = make(map[string]uint64, len(t.byType))
		for mt, n := range t.byType {
			snap.ReceivedByType[typeLabel(mt)] += n
		}
	}
	return snap
}
