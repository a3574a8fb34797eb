package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsAreIndependent(t *testing.T) {
	// two instances in one process must not collide on registration
	a := NewMetrics("server")
	b := NewMetrics("client")

	a.RecordReceived(4, false)
	a.RecordReceived(4, true)
	b.RecordSent(4)

	if got := testutil.ToFloat64(a.DatagramsReceived); got != 2 {
		t.Errorf("Expected 2 datagrams received, got %v", got)
	}
	if got := testutil.ToFloat64(a.DatagramsTruncated); got != 1 {
		t.Errorf("Expected 1 truncated datagram, got %v", got)
	}
	if got := testutil.ToFloat64(a.BytesReceived); got != 8 {
		t.Errorf("Expected 8 bytes received, got %v", got)
	}
	if got := testutil.ToFloat64(b.DatagramsSent); got != 1 {
		t.Errorf("Expected 1 datagram sent, got %v", got)
	}
	if got := testutil.ToFloat64(b.DatagramsReceived); got != 0 {
		t.Errorf("Expected client counters untouched, got %v", got)
	}
}

func TestRecordPoll(t *testing.T) {
	m := NewMetrics("knock-server")
	m.RecordPoll(3)
	m.RecordPoll(0)

	if got := testutil.ToFloat64(m.Polls); got != 2 {
		t.Errorf("Expected 2 polls, got %v", got)
	}
	if got := testutil.ToFloat64(m.InboxDepth); got != 0 {
		t.Errorf("Expected inbox depth 0 after empty poll, got %v", got)
	}
}

func TestRTTSummary(t *testing.T) {
	s := NewRTTStats(100)

	if sum := s.Summary(); sum.Count != 0 || sum.Max != 0 {
		t.Errorf("Expected empty summary, got %+v", sum)
	}

	for i := 1; i <= 100; i++ {
		s.Record(time.Duration(i) * time.Millisecond)
	}

	sum := s.Summary()
	if sum.Count != 100 {
		t.Errorf("Expected count 100, got %d", sum.Count)
	}
	if sum.Max != 100 {
		t.Errorf("Expected max 100ms, got %v", sum.Max)
	}
	if sum.P50 != 51 {
		t.Errorf("Expected p50 51ms, got %v", sum.P50)
	}
	if sum.Avg != 50.5 {
		t.Errorf("Expected avg 50.5ms, got %v", sum.Avg)
	}
}

func TestRTTWindowLimit(t *testing.T) {
	s := NewRTTStats(10)
	for i := 1; i <= 25; i++ {
		s.Record(time.Duration(i) * time.Millisecond)
	}

	sum := s.Summary()
	if sum.Count != 25 {
		t.Errorf("Expected total count 25, got %d", sum.Count)
	}
	if sum.Max != 25 {
		t.Errorf("Expected max 25ms, got %v", sum.Max)
	}
	// window holds 16..25
	if sum.Avg != 20.5 {
		t.Errorf("Expected avg over window 20.5ms, got %v", sum.Avg)
	}
}

func TestRoundTripStats(t *testing.T) {
	m := NewMetrics("client")
	m.RecordRoundTrip(2 * time.Millisecond)

	if sum := m.RoundTripStats(); sum.Count != 1 || sum.Max != 2 {
		t.Errorf("Unexpected summary %+v", sum)
	}
}
