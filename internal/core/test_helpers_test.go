package core

import (
	"context"
	"testing"
	"time"
)

func startEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(opts...)
	go e.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})
	return e
}

func mustSubscribe(t *testing.T, e *Engine) *Subscription {
	t.Helper()

	sub, err := e.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return sub
}

func mustDelivery(t *testing.T, sub *Subscription) Delivery {
	t.Helper()

	select {
	case d, ok := <-sub.Deliveries():
		if !ok {
			t.Fatalf("subscription %s closed", sub.ID())
		}
		return d
	case <-time.After(2 * time.Second):
		t.Fatalf("no delivery for subscription %s", sub.ID())
	}
	return Delivery{}
}

func mustClass(t *testing.T, sub *Subscription, class Class) Delivery {
	t.Helper()

	d := mustDelivery(t, sub)
	if d.Envelope.Class != class {
		t.Fatalf("expected %s envelope, got %+v", class, d.Envelope)
	}
	return d
}

func expectNoDelivery(t *testing.T, sub *Subscription) {
	t.Helper()

	select {
	case d, ok := <-sub.Deliveries():
		if ok {
			t.Fatalf("unexpected delivery: %+v", d.Envelope)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
