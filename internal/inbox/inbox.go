// Package inbox is the hand-off point between the receiver goroutine and the
// polled consumer. Every method holds its mutex for a single insert, swap or
// read and never waits for new data.
package inbox

import (
	"net"
	"sync"
	"time"
)

// Event is one received datagram
type Event struct {
	From       *net.UDPAddr
	Payload    []byte
	Seq        uint64 // arrival order, starting at 1
	ReceivedAt time.Time
	Truncated  bool
}

// Publisher is implemented by both inbox flavours
type Publisher interface {
	Publish(ev Event)
}

// Queue keeps every event in arrival order until drained.
type Queue struct {
	mu      sync.Mutex
	pending []Event
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Publish appends ev to the queue
func (q *Queue) Publish(ev Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
}

// Drain returns all pending events, oldest first, and empties the queue.
// Returns nil immediately when nothing is pending.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	events := q.pending
	q.pending = nil
	q.mu.Unlock()
	return events
}

// Len returns the number of pending events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// LastSender is a single-slot mailbox: a new event replaces the previous
// one. The sender of the most recent event stays readable after the event
// itself has been taken.
type LastSender struct {
	mu          sync.Mutex
	last        *net.UDPAddr
	pending     *Event
	overwritten uint64
}

// NewLastSender creates an empty slot
func NewLastSender() *LastSender {
	return &LastSender{}
}

// Publish overwrites the slot. An event that was never taken is counted as
// overwritten.
func (s *LastSender) Publish(ev Event) {
	s.mu.Lock()
	if s.pending != nil {
		s.overwritten++
	}
	s.pending = &ev
	s.last = ev.From
	s.mu.Unlock()
}

// PeekLastSender returns the most recent sender without consuming anything.
func (s *LastSender) PeekLastSender() (*net.UDPAddr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

// Take consumes the pending event, if any.
func (s *LastSender) Take() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Event{}, false
	}
	ev := *s.pending
	s.pending = nil
	return ev, true
}

// Overwritten returns how many events were replaced before being taken.
func (s *LastSender) Overwritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwritten
}
