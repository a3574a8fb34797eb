package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus instruments for one relay process
type Metrics struct {
	Registry *prometheus.Registry

	// Datagram traffic
	DatagramsReceived  prometheus.Counter
	DatagramsSent      prometheus.Counter
	BytesReceived      prometheus.Counter
	BytesSent          prometheus.Counter
	DatagramsTruncated prometheus.Counter

	// Failures by kind
	ReceiveErrors prometheus.Counter
	SendErrors    prometheus.Counter
	DecodeErrors  prometheus.Counter

	// Consumer side
	InboxDepth  prometheus.Gauge
	Polls       prometheus.Counter
	PeerChanges prometheus.Counter
	RoundTrip   prometheus.Histogram

	rtt *RTTStats
}

// NewMetrics creates a private registry and registers all instruments on it.
// The role label is attached to every series.
func NewMetrics(role string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	labels := prometheus.Labels{"role": role}

	return &Metrics{
		Registry: reg,

		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_datagrams_received_total",
			Help:        "Total number of UDP datagrams received",
			ConstLabels: labels,
		}),
		DatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_datagrams_sent_total",
			Help:        "Total number of UDP datagrams sent",
			ConstLabels: labels,
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_bytes_received_total",
			Help:        "Total payload bytes received",
			ConstLabels: labels,
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_bytes_sent_total",
			Help:        "Total payload bytes sent",
			ConstLabels: labels,
		}),
		DatagramsTruncated: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_datagrams_truncated_total",
			Help:        "Datagrams larger than the receive buffer",
			ConstLabels: labels,
		}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_receive_errors_total",
			Help:        "Transient socket receive errors",
			ConstLabels: labels,
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_send_errors_total",
			Help:        "Socket send errors",
			ConstLabels: labels,
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_decode_errors_total",
			Help:        "Payloads that were not valid UTF-8",
			ConstLabels: labels,
		}),
		InboxDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "relay_inbox_events",
			Help:        "Events drained from the inbox by the last poll",
			ConstLabels: labels,
		}),
		Polls: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_polls_total",
			Help:        "Number of consumer polls",
			ConstLabels: labels,
		}),
		PeerChanges: factory.NewCounter(prometheus.CounterOpts{
			Name:        "relay_peer_changes_total",
			Help:        "Times the remembered peer address changed",
			ConstLabels: labels,
		}),
		RoundTrip: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "relay_round_trip_seconds",
			Help:        "Time from a client trigger to the first reply",
			Buckets:     prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
			ConstLabels: labels,
		}),

		rtt: NewRTTStats(1000),
	}
}

// RecordReceived counts one inbound datagram
func (m *Metrics) RecordReceived(size int, truncated bool) {
	m.DatagramsReceived.Inc()
	m.BytesReceived.Add(float64(size))
	if truncated {
		m.DatagramsTruncated.Inc()
	}
}

// RecordSent counts one outbound datagram
func (m *Metrics) RecordSent(size int) {
	m.DatagramsSent.Inc()
	m.BytesSent.Add(float64(size))
}

// RecordReceiveError increments the receive errors counter
func (m *Metrics) RecordReceiveError() {
	m.ReceiveErrors.Inc()
}

// RecordSendError increments the send errors counter
func (m *Metrics) RecordSendError() {
	m.SendErrors.Inc()
}

// RecordDecodeError increments the decode errors counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordPoll records one consumer tick and how many events it drained
func (m *Metrics) RecordPoll(drained int) {
	m.Polls.Inc()
	m.InboxDepth.Set(float64(drained))
}

// RecordPeerChange increments the peer changes counter
func (m *Metrics) RecordPeerChange() {
	m.PeerChanges.Inc()
}

// RecordRoundTrip records a request/reply round trip
func (m *Metrics) RecordRoundTrip(d time.Duration) {
	m.RoundTrip.Observe(d.Seconds())
	m.rtt.Record(d)
}

// RoundTripStats returns the percentile summary of recent round trips
func (m *Metrics) RoundTripStats() RTTSummary {
	return m.rtt.Summary()
}
