// Package role implements the polled consumers for the four peers: the
// ping/pong server and client, and the knock-knock server and client.
//
// A role is driven from a single goroutine. Poll drains the inbox once per
// tick and Trigger performs the user-initiated action; both return the log
// lines they produced. Neither call ever waits on the network.
package role

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"udp-relay/internal/inbox"
	"udp-relay/internal/metrics"
	"udp-relay/internal/payload"
)

// Fixed payloads exchanged by the peers
const (
	PingRequest  = "Ping"
	PingReply    = "Pong"
	KnockRequest = "KNOCK KNOCK"
	KnockReply   = "WHO IS THERE?"
)

// Role is the surface a front end drives
type Role interface {
	Name() string
	Poll() []string
	Trigger() []string
	State() State
	Peer() *net.UDPAddr
	Log() []string
}

var (
	_ Role = (*PingServer)(nil)
	_ Role = (*KnockServer)(nil)
	_ Role = (*Client)(nil)
)

// Sender is the send side of an endpoint
type Sender interface {
	Send(payload []byte, to *net.UDPAddr) error
}

// Config holds the collaborators shared by all roles
type Config struct {
	Sender   Sender
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	LogLines int
}

// base carries the log book and send path common to every role
type base struct {
	name    string
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
	book    *LogBook
	state   State
	fresh   []string
}

func newBase(name string, cfg Config) base {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		name:    name,
		sender:  cfg.Sender,
		logger:  logger.With(slog.String("role", name)),
		metrics: cfg.Metrics,
		book:    NewLogBook(cfg.LogLines),
		state:   Idle,
	}
}

func (b *base) Name() string { return b.name }

func (b *base) State() State { return b.state }

// Log returns the retained log book
func (b *base) Log() []string { return b.book.Lines() }

func (b *base) setState(s State) {
	if b.state == s {
		return
	}
	b.logger.Debug("State changed", slog.String("from", b.state.String()), slog.String("to", s.String()))
	b.state = s
}

func (b *base) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	b.book.Append(line)
	b.fresh = append(b.fresh, line)
}

// flush returns the lines produced since the last flush
func (b *base) flush() []string {
	lines := b.fresh
	b.fresh = nil
	return lines
}

// send transmits payload and reports failures in the log book. It returns
// whether the OS accepted the datagram.
func (b *base) send(msg string, to *net.UDPAddr) bool {
	if err := b.sender.Send([]byte(msg), to); err != nil {
		if b.metrics != nil {
			b.metrics.RecordSendError()
		}
		b.logger.Warn("Failed to send datagram",
			slog.String("payload", msg),
			slog.String("error", err.Error()),
		)
		b.logf("[Error]: %v", err)
		return false
	}
	if b.metrics != nil {
		b.metrics.RecordSent(len(msg))
	}
	return true
}

// text renders an event payload, falling back to a placeholder for bytes
// that are not UTF-8
func (b *base) text(ev inbox.Event) string {
	s, err := payload.Describe(ev.Payload)
	if err != nil {
		if b.metrics != nil {
			b.metrics.RecordDecodeError()
		}
		b.logger.Debug("Payload shown degraded",
			slog.String("from", ev.From.String()),
			slog.String("error", err.Error()),
		)
	}
	if ev.Truncated {
		s += " (truncated)"
	}
	return s
}

func (b *base) recordPoll(drained int) {
	if b.metrics != nil {
		b.metrics.RecordPoll(drained)
	}
}

func (b *base) recordRoundTrip(d time.Duration) {
	if b.metrics != nil && d > 0 {
		b.metrics.RecordRoundTrip(d)
	}
}
