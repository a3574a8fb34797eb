package peer

import (
	"net"
	"sync"
	"time"
)

// Registry remembers the most recently seen remote address. There is no
// expiry: an address stays current until the next one replaces it.
type Registry struct {
	mu       sync.RWMutex
	current  *net.UDPAddr
	seenAt   time.Time
	changes  uint64
	onChange func(addr *net.UDPAddr)
}

// NewRegistry creates an empty registry. onChange, if set, is called after
// the remembered address changes to a different one.
func NewRegistry(onChange func(addr *net.UDPAddr)) *Registry {
	return &Registry{onChange: onChange}
}

// Remember overwrites the current address. It reports whether the address
// differs from the previous one.
func (r *Registry) Remember(addr *net.UDPAddr) bool {
	if addr == nil {
		return false
	}

	r.mu.Lock()
	changed := r.current == nil || r.current.String() != addr.String()
	r.current = addr
	r.seenAt = time.Now()
	if changed {
		r.changes++
	}
	r.mu.Unlock()

	if changed && r.onChange != nil {
		r.onChange(addr)
	}
	return changed
}

// Current returns the remembered address
func (r *Registry) Current() (*net.UDPAddr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.current != nil
}

// LastSeen returns when the current address last sent something
func (r *Registry) LastSeen() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seenAt
}

// Changes returns how many times the remembered address switched to a new peer
func (r *Registry) Changes() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changes
}
