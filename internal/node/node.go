// Package node assembles one relay process: the bound endpoint, the receive
// loop, the inbox that fits the role, and the role's poll consumer.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"udp-relay/internal/config"
	"udp-relay/internal/endpoint"
	"udp-relay/internal/inbox"
	"udp-relay/internal/metrics"
	"udp-relay/internal/peer"
	"udp-relay/internal/relay"
	"udp-relay/internal/role"
)

// closeWait bounds how long Close waits for the receive loop
const closeWait = time.Second

// Node is one running peer
type Node struct {
	InstanceID string
	Config     *config.Config
	Endpoint   *endpoint.Endpoint
	Receiver   *relay.Receiver
	Role       role.Role
	Peers      *peer.Registry // nil for client roles
	Metrics    *metrics.Metrics

	logger *slog.Logger
}

// New binds the socket and builds the role described by cfg. A bind failure
// is returned as *endpoint.BindError.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewMetrics(cfg.Role)
	}

	n := &Node{
		InstanceID: uuid.NewString(),
		Config:     cfg,
		Metrics:    m,
	}
	n.logger = logger.With(slog.String("instance", n.InstanceID))

	ep, err := endpoint.Bind(ctx, cfg.BindAddr(), endpoint.Options{
		SocketBuffer: cfg.Network.SocketBuffer,
		ReuseAddr:    cfg.Network.ReuseAddr,
		Logger:       n.logger,
	})
	if err != nil {
		return nil, err
	}
	n.Endpoint = ep

	roleCfg := role.Config{
		Sender:   ep,
		Logger:   n.logger,
		Metrics:  m,
		LogLines: cfg.Frontend.LogLines,
	}

	var box inbox.Publisher
	switch cfg.Role {
	case config.RoleServer:
		slot := inbox.NewLastSender()
		n.Peers = n.newRegistry()
		n.Role = role.NewPingServer(roleCfg, slot, n.Peers)
		box = slot

	case config.RoleKnockServer:
		queue := inbox.NewQueue()
		n.Peers = n.newRegistry()
		n.Role = role.NewKnockServer(roleCfg, queue, n.Peers)
		box = queue

	case config.RoleClient, config.RoleKnockClient:
		server, err := net.ResolveUDPAddr("udp", cfg.Network.Server)
		if err != nil {
			ep.Close()
			return nil, fmt.Errorf("failed to resolve server address %s: %w", cfg.Network.Server, err)
		}
		queue := inbox.NewQueue()
		if cfg.Role == config.RoleClient {
			n.Role = role.NewPingClient(roleCfg, queue, server)
		} else {
			n.Role = role.NewKnockClient(roleCfg, queue, server)
		}
		box = queue

	default:
		ep.Close()
		return nil, fmt.Errorf("unknown role '%s'", cfg.Role)
	}

	n.Receiver = relay.New(ep, box,
		relay.WithLogger(n.logger),
		relay.WithMetrics(m),
		relay.WithBufferSize(cfg.Network.BufferSize),
	)

	return n, nil
}

func (n *Node) newRegistry() *peer.Registry {
	return peer.NewRegistry(func(addr *net.UDPAddr) {
		n.Metrics.RecordPeerChange()
		n.logger.Info("Peer changed", slog.String("peer", addr.String()))
	})
}

// Start launches the receive loop
func (n *Node) Start() {
	n.Receiver.Start()
	n.logger.Info("Node started",
		slog.String("role", n.Config.Role),
		slog.String("address", n.Endpoint.LocalAddr().String()),
	)
}

// LocalAddr returns the bound address
func (n *Node) LocalAddr() *net.UDPAddr {
	return n.Endpoint.LocalAddr()
}

// Close closes the socket and waits briefly for the receive loop to exit.
// Shutdown is best-effort: a loop that does not exit in time is abandoned.
func (n *Node) Close() error {
	err := n.Endpoint.Close()

	select {
	case <-n.Receiver.Done():
	case <-time.After(closeWait):
		n.logger.Warn("Receive loop did not exit in time")
	}

	n.logger.Info("Node stopped", slog.Uint64("datagrams_received", n.Receiver.Received()))
	return err
}
