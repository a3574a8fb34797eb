package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// RTTStats keeps the most recent round-trip samples in milliseconds
type RTTStats struct {
	mu      sync.Mutex
	samples []float64
	limit   int
	total   int64
}

// RTTSummary provides aggregated round-trip statistics
type RTTSummary struct {
	Count     int64     `json:"count"`
	P50       float64   `json:"p50_ms"`
	P95       float64   `json:"p95_ms"`
	P99       float64   `json:"p99_ms"`
	Max       float64   `json:"max_ms"`
	Avg       float64   `json:"avg_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRTTStats creates a window of at most limit samples
func NewRTTStats(limit int) *RTTStats {
	return &RTTStats{
		samples: make([]float64, 0, limit),
		limit:   limit,
	}
}

// Record adds a sample, discarding the oldest ones when the window is full
func (s *RTTStats) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, float64(d.Microseconds())/1000)
	s.total++

	if len(s.samples) > s.limit {
		// Copy so the dropped prefix can be collected
		s.samples = append([]float64(nil), s.samples[len(s.samples)-s.limit:]...)
	}
}

// Summary calculates percentiles over the current window
func (s *RTTStats) Summary() RTTSummary {
	s.mu.Lock()
	sorted := append([]float64(nil), s.samples...)
	total := s.total
	s.mu.Unlock()

	summary := RTTSummary{
		Count:     total,
		Timestamp: time.Now(),
	}
	if len(sorted) == 0 {
		return summary
	}

	sort.Float64s(sorted)

	n := len(sorted)
	summary.P50 = sorted[int(float64(n)*0.5)]
	summary.P95 = sorted[int(math.Min(float64(n)*0.95, float64(n-1)))]
	summary.P99 = sorted[int(math.Min(float64(n)*0.99, float64(n-1)))]
	summary.Max = sorted[n-1]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	summary.Avg = sum / float64(n)

	return summary
}
