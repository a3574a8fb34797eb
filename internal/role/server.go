package role

import (
	"log/slog"
	"net"
	"strings"

	"udp-relay/internal/inbox"
	"udp-relay/internal/peer"
)

// PingServer remembers whoever sent last and answers "Pong" only when the
// user asks for it.
type PingServer struct {
	base
	inbox       *inbox.LastSender
	peers       *peer.Registry
	overwritten uint64
}

// NewPingServer creates the ping/pong server consumer
func NewPingServer(cfg Config, box *inbox.LastSender, peers *peer.Registry) *PingServer {
	return &PingServer{
		base:  newBase("server", cfg),
		inbox: box,
		peers: peers,
	}
}

// Poll takes the pending datagram, if any, logs it and remembers its sender.
func (s *PingServer) Poll() []string {
	if s.state == Idle {
		s.setState(AwaitingPeer)
	}

	ev, ok := s.inbox.Take()
	if !ok {
		s.recordPoll(0)
		return s.flush()
	}
	s.recordPoll(1)

	if n := s.inbox.Overwritten(); n > s.overwritten {
		s.logger.Debug("Datagrams replaced before poll", slog.Uint64("count", n-s.overwritten))
		s.overwritten = n
	}

	s.logf("[Rx]: %s", s.text(ev))
	s.peers.Remember(ev.From)
	s.setState(HasPeer)

	return s.flush()
}

// Trigger sends "Pong" to the last remembered peer. Without a peer it only
// logs an error.
func (s *PingServer) Trigger() []string {
	addr, ok := s.peers.Current()
	if !ok {
		s.logf("[Error]: No client connected")
		return s.flush()
	}

	if s.send(PingReply, addr) {
		s.logf("[Tx]: %s to %s", PingReply, addr)
	}
	return s.flush()
}

// Peer returns the remembered client address
func (s *PingServer) Peer() *net.UDPAddr {
	addr, _ := s.peers.Current()
	return addr
}

// KnockServer answers every "KNOCK KNOCK" with "WHO IS THERE?" in the same
// poll that sees it. There is no manual action.
type KnockServer struct {
	base
	inbox *inbox.Queue
	peers *peer.Registry
}

// NewKnockServer creates the knock-knock server consumer
func NewKnockServer(cfg Config, box *inbox.Queue, peers *peer.Registry) *KnockServer {
	return &KnockServer{
		base:  newBase("knock-server", cfg),
		inbox: box,
		peers: peers,
	}
}

// Poll drains the queue, logging every datagram and replying to knocks.
func (s *KnockServer) Poll() []string {
	if s.state == Idle {
		s.setState(AwaitingPeer)
	}

	events := s.inbox.Drain()
	s.recordPoll(len(events))

	for _, ev := range events {
		msg := strings.TrimSpace(s.text(ev))
		s.logf("[Rx from %s]: %s", ev.From, msg)
		s.peers.Remember(ev.From)
		s.setState(HasPeer)

		if msg != KnockRequest {
			continue
		}
		if s.send(KnockReply, ev.From) {
			s.logf("[Tx to %s]: %s", ev.From, KnockReply)
		}
	}

	return s.flush()
}

// Trigger does nothing: replies are automatic.
func (s *KnockServer) Trigger() []string {
	return nil
}

// Peer returns the address of the last client that knocked
func (s *KnockServer) Peer() *net.UDPAddr {
	addr, _ := s.peers.Current()
	return addr
}
