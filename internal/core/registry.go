package core

import "sync"

// Subscriber is a sink the registry can push deliveries into.
type Subscriber interface {
	ID() string
	// Deliver must not block. It returns ErrSubscriberUnreachable when the
	// subscriber can no longer take deliveries.
	Deliver(d Delivery) error
	Close()
}

// Registry is the set of currently live subscribers of one room.
type Registry struct {
	mu      sync.RWMutex
	members map[Subscriber]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[Subscriber]struct{}),
	}
}

// Add inserts a subscriber. Returns true if newly added.
func (r *Registry) Add(s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[s]; exists {
		return false
	}
	r.members[s] = struct{}{}
	return true
}

// Remove deletes a subscriber. Returns true if removed.
func (r *Registry) Remove(s Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[s]; !exists {
		return false
	}
	delete(r.members, s)
	return true
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ForEach calls deliver for a snapshot of the current members. A member whose
// deliver call fails is removed and closed; the failure is not reported to the
// caller. Returns the number of members evicted.
func (r *Registry) ForEach(deliver func(Subscriber) error) int {
	snapshot := r.snapshot()

	evicted := 0
	for _, s := range snapshot {
		if err := deliver(s); err != nil {
			if r.Remove(s) {
				evicted++
			}
			s.Close()
		}
	}
	return evicted
}

// Drain removes every member and closes it.
func (r *Registry) Drain() {
	r.mu.Lock()
	members := r.members
	r.members = make(map[Subscriber]struct{})
	r.mu.Unlock()

	for s := range members {
		s.Close()
	}
}

func (r *Registry) snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscriber, 0, len(r.members))
	for s := range r.members {
		out = append(out, s)
	}
	return out
}
