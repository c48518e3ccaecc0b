package core

import "sync"

// Subscription is a registered subscriber backed by a bounded buffer. The
// transport adapter reads Deliveries until the channel is closed.
type Subscription struct {
	id string

	mu         sync.Mutex
	closed     bool
	deliveries chan Delivery

	unsubscribed bool
}

// NewSubscription constructs a subscription with the given buffer size.
func NewSubscription(id string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscription{
		id:         id,
		deliveries: make(chan Delivery, buffer),
	}
}

// ID returns the subscriber id.
func (s *Subscription) ID() string {
	return s.id
}

// Deliveries returns the stream of envelopes for this subscriber.
// It is closed when the subscriber is evicted or unsubscribed.
func (s *Subscription) Deliveries() <-chan Delivery {
	return s.deliveries
}

// Deliver enqueues d without blocking. A full buffer means the consumer fell
// behind; it is reported as unreachable so the registry evicts it instead of
// silently skipping an envelope.
func (s *Subscription) Deliver(d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSubscriberUnreachable
	}
	select {
	case s.deliveries <- d:
		return nil
	default:
		return ErrSubscriberUnreachable
	}
}

// Close stops further deliveries. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.deliveries)
}

// markUnsubscribed flips the leave flag and reports whether this was the first call.
func (s *Subscription) markUnsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribed {
		return false
	}
	s.unsubscribed = true
	return true
}
