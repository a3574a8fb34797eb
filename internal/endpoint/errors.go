package endpoint

import (
	"errors"
	"fmt"
	"net"
)

// ErrClosed is wrapped by ReceiveError and SendError once the endpoint is closed.
var ErrClosed = net.ErrClosed

// BindError means the socket could not be created. The process cannot run
// without it.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind UDP %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// SendError is returned when the OS refuses a datagram. It is never fatal.
type SendError struct {
	To  string
	Err error
}

func (e *SendError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("failed to send datagram: %v", e.Err)
	}
	return fmt.Sprintf("failed to send datagram to %s: %v", e.To, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError wraps a failed blocking receive.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("failed to receive datagram: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// Closed reports whether the receive failed because the socket was closed.
// Any other ReceiveError is transient.
func (e *ReceiveError) Closed() bool {
	return errors.Is(e.Err, net.ErrClosed)
}
