// Package relay runs the background receive loop that feeds an inbox.
package relay

import (
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"udp-relay/internal/endpoint"
	"udp-relay/internal/inbox"
	"udp-relay/internal/metrics"
)

const (
	// DefaultBufferSize matches the datagram size the peers exchange
	DefaultBufferSize = 1024
	// DefaultRetryPause is how long the loop waits after a transient error
	DefaultRetryPause = 10 * time.Millisecond
)

// Source is the receive side of an endpoint
type Source interface {
	Receive(buf []byte) (n int, from *net.UDPAddr, truncated bool, err error)
}

// Receiver owns the only call site of Source.Receive
type Receiver struct {
	source     Source
	inbox      inbox.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	bufferSize int
	retryPause time.Duration

	seq     atomic.Uint64
	started atomic.Bool
	done    chan struct{}
}

// Option configures a Receiver
type Option func(*Receiver)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Receiver) { r.logger = logger }
}

// WithMetrics records received datagrams and errors
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Receiver) { r.metrics = m }
}

// WithBufferSize sets the largest datagram delivered untruncated
func WithBufferSize(size int) Option {
	return func(r *Receiver) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

// WithRetryPause sets the pause after a transient receive error
func WithRetryPause(d time.Duration) Option {
	return func(r *Receiver) { r.retryPause = d }
}

// New creates a receiver that publishes everything read from source into box
func New(source Source, box inbox.Publisher, opts ...Option) *Receiver {
	r := &Receiver{
		source:     source,
		inbox:      box,
		logger:     slog.Default(),
		bufferSize: DefaultBufferSize,
		retryPause: DefaultRetryPause,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the receive loop. It runs until the source is closed;
// there is no other way to stop it. Calling Start twice has no effect.
func (r *Receiver) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.receiveLoop()
}

// Done is closed when the receive loop has exited
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Received returns how many datagrams were published so far
func (r *Receiver) Received() uint64 {
	return r.seq.Load()
}

func (r *Receiver) receiveLoop() {
	defer close(r.done)

	buffer := make([]byte, r.bufferSize)
	r.logger.Debug("Receive loop started", slog.Int("buffer_size", r.bufferSize))

	for {
		n, from, truncated, err := r.source.Receive(buffer)
		if err != nil {
			if isClosed(err) {
				r.logger.Info("Receive loop stopping, socket closed")
				return
			}
			if r.metrics != nil {
				r.metrics.RecordReceiveError()
			}
			r.logger.Warn("Failed to receive datagram, retrying", slog.String("error", err.Error()))
			time.Sleep(r.retryPause)
			continue
		}

		// buffer is reused on the next read
		data := make([]byte, n)
		copy(data, buffer[:n])

		ev := inbox.Event{
			From:       from,
			Payload:    data,
			Seq:        r.seq.Add(1),
			ReceivedAt: time.Now(),
			Truncated:  truncated,
		}

		if r.metrics != nil {
			r.metrics.RecordReceived(n, truncated)
		}
		if truncated {
			r.logger.Warn("Datagram truncated",
				slog.String("from", from.String()),
				slog.Int("buffer_size", r.bufferSize),
			)
		}
		r.logger.Debug("Datagram received",
			slog.String("from", from.String()),
			slog.Int("size", n),
			slog.Uint64("seq", ev.Seq),
		)

		r.inbox.Publish(ev)
	}
}

func isClosed(err error) bool {
	var recvErr *endpoint.ReceiveError
	if errors.As(err, &recvErr) {
		return recvErr.Closed()
	}
	return errors.Is(err, net.ErrClosed)
}
