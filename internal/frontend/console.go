package frontend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console is a terminal view: it prints new log lines and turns typed
// commands into triggers.
type Console struct {
	fe     *Frontend
	in     io.Reader
	out    io.Writer
	action string
	mu     sync.Mutex
}

// NewConsole creates a console for fe. action names the trigger in the help
// text, e.g. "PING" or "KNOCK KNOCK"; empty means the role has no action.
func NewConsole(fe *Frontend, in io.Reader, out io.Writer, action string) *Console {
	return &Console{fe: fe, in: in, out: out, action: action}
}

// WriteLines prints lines produced by a tick
func (c *Console) WriteLines(lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		fmt.Fprintln(c.out, l)
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Run reads commands until input ends, "quit" is typed or ctx is done.
// It returns io.EOF when input ended and nil on "quit" or cancellation.
func (c *Console) Run(ctx context.Context) error {
	c.fe.AddSink(c)
	defer c.fe.RemoveSink(c)

	snap := c.fe.Snapshot()
	c.printf(">>> %s bound to %s\n", snap.Role, snap.LocalAddr)
	c.help()

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line := <-lines:
			if quit := c.handle(strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (c *Console) handle(cmd string) (quit bool) {
	switch strings.ToLower(cmd) {
	case "", "s", "send", "ping", "knock":
		if c.action == "" {
			c.printf("This role replies automatically; nothing to send.\n")
			return false
		}
		c.fe.RequestTrigger()

	case "log":
		for _, l := range c.fe.Snapshot().Log {
			c.printf("%s\n", l)
		}

	case "peer", "status":
		snap := c.fe.Snapshot()
		peer := snap.Peer
		if peer == "" {
			peer = "none"
		}
		c.printf("state=%s peer=%s local=%s\n", snap.State, peer, snap.LocalAddr)

	case "help":
		c.help()

	case "quit", "exit":
		return true

	default:
		c.printf("Unknown command %q, type 'help'\n", cmd)
	}
	return false
}

func (c *Console) help() {
	c.printf("Commands:\n")
	if c.action != "" {
		c.printf("  <enter> | send  - %s\n", c.action)
	}
	c.printf("  log             - show the traffic log\n")
	c.printf("  peer            - show state and current peer\n")
	c.printf("  quit            - stop\n")
}
