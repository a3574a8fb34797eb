package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// DefaultSocketBuffer is the kernel buffer size requested for both directions.
const DefaultSocketBuffer = 256 * 1024

var errNoDestination = errors.New("no destination address")

// Options controls how the socket is created
type Options struct {
	// SocketBuffer sets SO_RCVBUF and SO_SNDBUF. Zero keeps the OS default.
	SocketBuffer int
	// ReuseAddr sets SO_REUSEADDR before bind. Leave off to get a BindError
	// when another process already owns the port.
	ReuseAddr bool
	Logger    *slog.Logger
}

// Endpoint owns one bound UDP socket. Receive is meant for a single receiver
// goroutine; Send may be called from any goroutine.
type Endpoint struct {
	conn   *net.UDPConn
	local  *net.UDPAddr
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Bind opens a UDP socket on addr ("host:port", port 0 picks a free one).
func Bind(ctx context.Context, addr string, opts Options) (*Endpoint, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lc := net.ListenConfig{Control: opts.control}
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, &BindError{Addr: addr, Err: fmt.Errorf("unexpected packet conn %T", pc)}
	}

	local, _ := conn.LocalAddr().(*net.UDPAddr)
	logger.Info("UDP endpoint bound",
		slog.String("address", local.String()),
		slog.Int("socket_buffer", opts.SocketBuffer),
		slog.Bool("reuse_addr", opts.ReuseAddr),
	)

	return &Endpoint{
		conn:   conn,
		local:  local,
		logger: logger,
	}, nil
}

// LocalAddr returns the address the socket is bound to
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.local
}

// Send writes payload as a single datagram to the destination.
func (e *Endpoint) Send(payload []byte, to *net.UDPAddr) error {
	if to == nil {
		return &SendError{Err: errNoDestination}
	}

	n, err := e.conn.WriteToUDP(payload, to)
	if err != nil {
		return &SendError{To: to.String(), Err: err}
	}
	if n != len(payload) {
		return &SendError{To: to.String(), Err: fmt.Errorf("short write: %d of %d bytes", n, len(payload))}
	}

	e.logger.Debug("Datagram sent",
		slog.String("to", to.String()),
		slog.Int("size", n),
	)
	return nil
}

// SendTo resolves a "host:port" destination and sends payload to it.
func (e *Endpoint) SendTo(payload []byte, to string) error {
	addr, err := net.ResolveUDPAddr("udp", to)
	if err != nil {
		return &SendError{To: to, Err: fmt.Errorf("failed to resolve destination: %w", err)}
	}
	return e.Send(payload, addr)
}

// Receive blocks until a datagram arrives and copies it into buf. When the
// datagram was larger than buf, the copied prefix is returned with
// truncated set.
func (e *Endpoint) Receive(buf []byte) (n int, from *net.UDPAddr, truncated bool, err error) {
	n, _, flags, from, err := e.conn.ReadMsgUDP(buf, nil)
	if err != nil {
		return 0, nil, false, &ReceiveError{Err: err}
	}
	return n, from, flags&msgTrunc != 0, nil
}

// Close releases the socket. A goroutine blocked in Receive returns a
// ReceiveError for which Closed reports true.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
		e.logger.Info("UDP endpoint closed", slog.String("address", e.local.String()))
	})
	return e.closeErr
}
