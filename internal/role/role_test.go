package role

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"udp-relay/internal/inbox"
	"udp-relay/internal/metrics"
	"udp-relay/internal/peer"
)

type sent struct {
	payload string
	to      string
}

// recordingSender captures sends instead of touching the network
type recordingSender struct {
	sends []sent
	err   error
}

func (r *recordingSender) Send(payload []byte, to *net.UDPAddr) error {
	if r.err != nil {
		return r.err
	}
	r.sends = append(r.sends, sent{payload: string(payload), to: to.String()})
	return nil
}

func testConfig(sender Sender) Config {
	return Config{
		Sender:  sender,
		Logger:  slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
		Metrics: metrics.NewMetrics("test"),
	}
}

func udpAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func event(port int, msg string) inbox.Event {
	return inbox.Event{From: udpAddr(port), Payload: []byte(msg), ReceivedAt: time.Now()}
}

func TestPingServerReplyWithoutPeer(t *testing.T) {
	sender := &recordingSender{}
	s := NewPingServer(testConfig(sender), inbox.NewLastSender(), peer.NewRegistry(nil))

	lines := s.Trigger()
	if len(lines) != 1 || lines[0] != "[Error]: No client connected" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if len(sender.sends) != 0 {
		t.Errorf("Expected no send, got %v", sender.sends)
	}
	if s.Peer() != nil {
		t.Errorf("Expected no peer, got %v", s.Peer())
	}
}

func TestPingServerRemembersLastSender(t *testing.T) {
	sender := &recordingSender{}
	box := inbox.NewLastSender()
	s := NewPingServer(testConfig(sender), box, peer.NewRegistry(nil))

	if s.State() != Idle {
		t.Fatalf("Expected idle, got %s", s.State())
	}
	if lines := s.Poll(); len(lines) != 0 {
		t.Errorf("Expected no lines from empty poll, got %v", lines)
	}
	if s.State() != AwaitingPeer {
		t.Errorf("Expected awaiting-peer, got %s", s.State())
	}

	for port := 9001; port <= 9003; port++ {
		box.Publish(event(port, "Ping"))
	}

	lines := s.Poll()
	if len(lines) != 1 || lines[0] != "[Rx]: Ping" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if s.State() != HasPeer {
		t.Errorf("Expected has-peer, got %s", s.State())
	}
	if s.Peer().Port != 9003 {
		t.Errorf("Expected peer port 9003, got %v", s.Peer())
	}

	// reply is manual
	if len(sender.sends) != 0 {
		t.Fatalf("Expected no automatic reply, got %v", sender.sends)
	}

	lines = s.Trigger()
	if len(sender.sends) != 1 || sender.sends[0].payload != "Pong" || sender.sends[0].to != "127.0.0.1:9003" {
		t.Fatalf("Unexpected sends: %v", sender.sends)
	}
	if len(lines) != 1 || lines[0] != "[Tx]: Pong to 127.0.0.1:9003" {
		t.Errorf("Unexpected lines: %v", lines)
	}
}

func TestPingServerSendFailureIsLogged(t *testing.T) {
	sender := &recordingSender{err: errors.New("network unreachable")}
	cfg := testConfig(sender)
	box := inbox.NewLastSender()
	s := NewPingServer(cfg, box, peer.NewRegistry(nil))

	box.Publish(event(9100, "Ping"))
	s.Poll()

	lines := s.Trigger()
	if len(lines) != 1 || lines[0] != "[Error]: network unreachable" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if got := testutil.ToFloat64(cfg.Metrics.SendErrors); got != 1 {
		t.Errorf("Expected 1 send error, got %v", got)
	}
}

func TestKnockServerRepliesAutomatically(t *testing.T) {
	sender := &recordingSender{}
	box := inbox.NewQueue()
	s := NewKnockServer(testConfig(sender), box, peer.NewRegistry(nil))

	box.Publish(event(9200, "KNOCK KNOCK\n"))
	box.Publish(event(9201, "hello"))

	lines := s.Poll()
	want := []string{
		"[Rx from 127.0.0.1:9200]: KNOCK KNOCK",
		"[Tx to 127.0.0.1:9200]: WHO IS THERE?",
		"[Rx from 127.0.0.1:9201]: hello",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %v", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Line %d: expected '%s', got '%s'", i, want[i], lines[i])
		}
	}

	if len(sender.sends) != 1 || sender.sends[0].payload != "WHO IS THERE?" || sender.sends[0].to != "127.0.0.1:9200" {
		t.Errorf("Unexpected sends: %v", sender.sends)
	}
	if s.Trigger() != nil {
		t.Error("Expected Trigger to be a no-op")
	}
	if s.State() != HasPeer || s.Peer().Port != 9201 {
		t.Errorf("Expected has-peer with port 9201, got %s %v", s.State(), s.Peer())
	}
}

func TestPingClientStateMachine(t *testing.T) {
	sender := &recordingSender{}
	box := inbox.NewQueue()
	cfg := testConfig(sender)
	c := NewPingClient(cfg, box, udpAddr(12345))

	if c.State() != Idle {
		t.Fatalf("Expected idle, got %s", c.State())
	}

	lines := c.Trigger()
	if len(lines) != 1 || lines[0] != "[Tx]: Ping to 127.0.0.1:12345" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if c.State() != Sent {
		t.Errorf("Expected sent, got %s", c.State())
	}

	c.Poll()
	if c.State() != AwaitingReply {
		t.Errorf("Expected awaiting-reply, got %s", c.State())
	}

	// no timeout: still waiting after more empty polls
	c.Poll()
	if c.State() != AwaitingReply {
		t.Errorf("Expected awaiting-reply to persist, got %s", c.State())
	}

	box.Publish(event(12345, "Pong"))
	lines = c.Poll()
	if len(lines) != 1 || lines[0] != "[Rx]: Pong" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if c.State() != Idle {
		t.Errorf("Expected idle after reply, got %s", c.State())
	}
	if cfg.Metrics.RoundTripStats().Count != 1 {
		t.Errorf("Expected one round trip recorded, got %+v", cfg.Metrics.RoundTripStats())
	}
}

func TestKnockClient(t *testing.T) {
	sender := &recordingSender{}
	box := inbox.NewQueue()
	c := NewKnockClient(testConfig(sender), box, udpAddr(50051))

	lines := c.Trigger()
	if len(lines) != 1 || lines[0] != "[Tx]: KNOCK KNOCK -> 127.0.0.1:50051" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if len(sender.sends) != 1 || sender.sends[0].payload != "KNOCK KNOCK" {
		t.Errorf("Unexpected sends: %v", sender.sends)
	}

	box.Publish(event(50051, "  WHO IS THERE?  "))
	lines = c.Poll()
	if len(lines) != 1 || lines[0] != "[Rx]: WHO IS THERE?" {
		t.Errorf("Unexpected lines: %v", lines)
	}
}

func TestClientSendFailureKeepsState(t *testing.T) {
	sender := &recordingSender{err: errors.New("buffer full")}
	c := NewPingClient(testConfig(sender), inbox.NewQueue(), udpAddr(12345))

	lines := c.Trigger()
	if len(lines) != 1 || lines[0] != "[Error]: buffer full" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if c.State() != Idle {
		t.Errorf("Expected idle after failed send, got %s", c.State())
	}
}

func TestClientStaleReplyDoesNotCompleteSend(t *testing.T) {
	box := inbox.NewQueue()
	cfg := testConfig(&recordingSender{})
	c := NewPingClient(cfg, box, udpAddr(12345))

	// answer to an earlier ping, still queued when the next one goes out
	stale := event(12345, "Pong")
	stale.ReceivedAt = time.Now().Add(-time.Second)
	box.Publish(stale)

	c.Trigger()
	lines := c.Poll()
	if len(lines) != 1 || lines[0] != "[Rx]: Pong" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if c.State() != AwaitingReply {
		t.Errorf("Expected awaiting-reply after stale reply, got %s", c.State())
	}
	if cfg.Metrics.RoundTripStats().Count != 0 {
		t.Errorf("Expected no round trip for stale reply, got %+v", cfg.Metrics.RoundTripStats())
	}

	box.Publish(event(12345, "Pong"))
	c.Poll()
	if c.State() != Idle {
		t.Errorf("Expected idle after fresh reply, got %s", c.State())
	}
	if cfg.Metrics.RoundTripStats().Count != 1 {
		t.Errorf("Expected one round trip recorded, got %+v", cfg.Metrics.RoundTripStats())
	}
}

func TestMalformedPayloadIsSurfaced(t *testing.T) {
	cfg := testConfig(&recordingSender{})
	box := inbox.NewQueue()
	c := NewPingClient(cfg, box, udpAddr(12345))

	box.Publish(inbox.Event{From: udpAddr(12345), Payload: []byte{0xff, 0xfe}, Truncated: true})
	lines := c.Poll()
	if len(lines) != 1 || lines[0] != "[Rx]: <2 bytes: fffe> (truncated)" {
		t.Errorf("Unexpected lines: %v", lines)
	}
	if got := testutil.ToFloat64(cfg.Metrics.DecodeErrors); got != 1 {
		t.Errorf("Expected 1 decode error, got %v", got)
	}
}

func TestClientFIFOOrder(t *testing.T) {
	box := inbox.NewQueue()
	c := NewPingClient(testConfig(&recordingSender{}), box, udpAddr(12345))

	for _, msg := range []string{"one", "two", "three"} {
		box.Publish(event(12345, msg))
	}

	lines := c.Poll()
	want := []string{"[Rx]: one", "[Rx]: two", "[Rx]: three"}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Line %d: expected '%s', got '%s'", i, want[i], lines[i])
		}
	}
}

func TestLogBookLimit(t *testing.T) {
	book := NewLogBook(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		book.Append(l)
	}

	lines := book.Lines()
	if len(lines) != 3 || lines[0] != "c" || lines[2] != "e" {
		t.Errorf("Unexpected lines: %v", lines)
	}

	if NewLogBook(0).limit != DefaultLogLines {
		t.Error("Expected default limit for zero")
	}
}
