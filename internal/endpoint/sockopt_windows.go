//go:build windows

package endpoint

import (
	"syscall"
)

// Truncation is not reported by ReadMsgUDP on windows.
const msgTrunc = 0

func (o Options) control(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		h := syscall.Handle(fd)
		if o.ReuseAddr {
			if sockErr = syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); sockErr != nil {
				return
			}
		}
		if o.SocketBuffer > 0 {
			if sockErr = syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_RCVBUF, o.SocketBuffer); sockErr != nil {
				return
			}
			sockErr = syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_SNDBUF, o.SocketBuffer)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
