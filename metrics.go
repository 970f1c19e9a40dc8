package inspector

import (
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxTypeLabels is the number of distinct message types exported
// before further types are folded into OtherTypeLabel.
const DefaultMaxTypeLabels = 100

// OtherTypeLabel is the type label of messages whose type arrived after
// the label limit was reached.
const OtherTypeLabel = "other"

// Metrics exports relay traffic as Prometheus collectors.
// It implements Observer; Tracer returns the hooks for the connection counters.
type Metrics struct {
	maxTypes int
	typesMx  sync.Mutex
	types    map[string]struct{}

	bytes        *prometheus.CounterVec
	messages     *prometheus.CounterVec
	connections  prometheus.Counter
	active       prometheus.Gauge
	dialFailures prometheus.Counter
}

var _ Observer = &Metrics{}

// NewMetrics creates the collectors and registers them with reg.
// The type label takes at most DefaultMaxTypeLabels distinct values.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return NewMetricsWithLimit(reg, DefaultMaxTypeLabels)
}

// NewMetricsWithLimit is like NewMetrics, exporting at most maxTypes distinct
// type labels. The message type is chosen by the peer, so a non-positive
// maxTypes folds every type into OtherTypeLabel.
func NewMetricsWithLimit(reg prometheus.Registerer, maxTypes int) *Metrics {
	m := &Metrics{
		maxTypes: maxTypes,
		types:    make(map[string]struct{}),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inspector",
				Subsystem: "relay",
				Name:      "bytes_total",
				Help:      "Bytes relayed, by direction and message type.",
			},
			[]string{"direction", "type"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inspector",
				Subsystem: "relay",
				Name:      "messages_total",
				Help:      "Chunks relayed, by direction and message type.",
			},
			[]string{"direction", "type"},
		),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inspector",
			Subsystem: "relay",
			Name:      "connections_total",
			Help:      "Client connections accepted.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inspector",
			Subsystem: "relay",
			Name:      "connections_active",
			Help:      "Connection pairs currently being relayed.",
		}),
		dialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inspector",
			Subsystem: "relay",
			Name:      "dial_failures_total",
			Help:      "Accepted connections dropped because the target was unreachable.",
		}),
	}
	reg.MustRegister(m.bytes, m.messages, m.connections, m.active, m.dialFailures)
	return m
}

// ObserveChunk counts the chunk under its direction and message type.
func (m *Metrics) ObserveChunk(ev ChunkEvent) {
	dir := ev.Direction.metricLabel()
	label := m.typeLabel(ev.Class.Label())
	m.bytes.WithLabelValues(dir, label).Add(float64(len(ev.Data)))
	m.messages.WithLabelValues(dir, label).Inc()
}

// typeLabel returns label if it is already exported or there is room for it,
// and OtherTypeLabel otherwise. BinaryLabel is always exported.
func (m *Metrics) typeLabel(label string) string {
	if label == BinaryLabel {
		return label
	}
	m.typesMx.Lock()
	defer m.typesMx.Unlock()
	if _, ok := m.types[label]; ok {
		return label
	}
	if len(m.types) >= m.maxTypes {
		return OtherTypeLabel
	}
	m.types[label] = struct{}{}
	return label
}

// ConnectionClosed is a no-op; per-connection totals are already counted chunk by chunk.
func (m *Metrics) ConnectionClosed(uint64, Snapshot) {}

// Tracer returns a Tracer that keeps the connection collectors up to date.
func (m *Metrics) Tracer() *Tracer {
	return &Tracer{
		ConnectionAccepted: func(uint64, net.Addr) {
			m.connections.Inc()
		},
		DialFailed: func(uint64, string, error) {
			m.dialFailures.Inc()
		},
		ConnectionEstablished: func(uint64, string) {
			m.active.Inc()
		},
		ConnectionClosed: func(uint64, error) {
			m.active.Dec()
		},
	}
}
