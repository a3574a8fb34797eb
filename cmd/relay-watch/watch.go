package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"udp-relay/internal/frontend"
	"udp-relay/internal/role"
)

// Watcher polls a relay's /status endpoint and reports replies that never
// arrive. A client stuck in AwaitingReply for stallChecks polls with no new
// log lines has most likely lost a datagram.
type Watcher struct {
	url         string
	client      *http.Client
	stallChecks int
	out         io.Writer

	lastLog    int
	stallCount int
}

// NewWatcher creates a watcher for the relay HTTP front end at baseURL
func NewWatcher(baseURL string, stallChecks int, out io.Writer) *Watcher {
	if stallChecks < 1 {
		stallChecks = 1
	}
	return &Watcher{
		url:         baseURL + "/status",
		client:      &http.Client{Timeout: 5 * time.Second},
		stallChecks: stallChecks,
		out:         out,
	}
}

// Run checks once per interval until ctx is done
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.Check(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check performs one poll and reports whether a stall was detected
func (w *Watcher) Check(ctx context.Context) bool {
	snap, err := w.fetch(ctx)
	if err != nil {
		fmt.Fprintf(w.out, "Error getting status: %v\n", err)
		return false
	}

	peer := snap.Peer
	if peer == "" {
		peer = "none"
	}
	fmt.Fprintf(w.out, "[%s] %s %s state=%s peer=%s lines=%d",
		time.Now().Format("15:04:05"), snap.Role, snap.LocalAddr, snap.State, peer, len(snap.Log))
	if snap.RoundTrip != nil && snap.RoundTrip.Count > 0 {
		fmt.Fprintf(w.out, " rtt_p50=%.2fms rtt_max=%.2fms", snap.RoundTrip.P50, snap.RoundTrip.Max)
	}
	fmt.Fprintln(w.out)

	stalled := false
	if snap.State == role.AwaitingReply.String() && len(snap.Log) == w.lastLog {
		w.stallCount++
		if w.stallCount >= w.stallChecks {
			fmt.Fprintf(w.out, "WARNING: no reply after %d checks, the request or its reply was probably lost\n", w.stallCount)
			stalled = true
		}
	} else {
		w.stallCount = 0
	}
	w.lastLog = len(snap.Log)

	return stalled
}

func (w *Watcher) fetch(ctx context.Context) (*frontend.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to status endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned status %d", resp.StatusCode)
	}

	var snap frontend.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse status JSON: %w", err)
	}
	return &snap, nil
}
