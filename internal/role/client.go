package role

import (
	"fmt"
	"net"
	"strings"
	"time"

	"udp-relay/internal/inbox"
)

// Client sends a fixed request on every trigger and logs whatever comes back.
// The same type drives the ping client and the knock-knock client.
type Client struct {
	base
	inbox   *inbox.Queue
	server  *net.UDPAddr
	request string
	txLine  func(server *net.UDPAddr) string
	trim    bool
	sentAt  time.Time
}

// NewPingClient creates the ping/pong client consumer
func NewPingClient(cfg Config, box *inbox.Queue, server *net.UDPAddr) *Client {
	return &Client{
		base:    newBase("client", cfg),
		inbox:   box,
		server:  server,
		request: PingRequest,
		txLine: func(server *net.UDPAddr) string {
			return fmt.Sprintf("[Tx]: %s to %s", PingRequest, server)
		},
	}
}

// NewKnockClient creates the knock-knock client consumer
func NewKnockClient(cfg Config, box *inbox.Queue, server *net.UDPAddr) *Client {
	return &Client{
		base:    newBase("knock-client", cfg),
		inbox:   box,
		server:  server,
		request: KnockRequest,
		txLine: func(server *net.UDPAddr) string {
			return fmt.Sprintf("[Tx]: %s -> %s", KnockRequest, server)
		},
		trim: true,
	}
}

// Trigger sends the request to the server and logs it right away; nothing
// confirms delivery.
func (c *Client) Trigger() []string {
	if c.send(c.request, c.server) {
		c.logf("%s", c.txLine(c.server))
		c.sentAt = time.Now()
		c.setState(Sent)
	}
	return c.flush()
}

// Poll drains the queue and logs every reply. The first reply received
// after a trigger is timed as a round trip.
func (c *Client) Poll() []string {
	events := c.inbox.Drain()
	c.recordPoll(len(events))

	for _, ev := range events {
		msg := c.text(ev)
		if c.trim {
			msg = strings.TrimSpace(msg)
		}
		c.logf("[Rx]: %s", msg)

		// a datagram queued before the last send is not its reply
		if (c.state == Sent || c.state == AwaitingReply) && !ev.ReceivedAt.Before(c.sentAt) {
			c.recordRoundTrip(ev.ReceivedAt.Sub(c.sentAt))
			c.setState(Idle)
		}
	}

	if c.state == Sent {
		c.setState(AwaitingReply)
	}
	return c.flush()
}

// Peer returns the configured server address
func (c *Client) Peer() *net.UDPAddr {
	return c.server
}
