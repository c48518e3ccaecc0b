package http

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// sink is the write side of one subscriber connection.
type sink interface {
	Send(ctx context.Context, d core.Delivery) error
	Ping(ctx context.Context) error
}

// pump forwards deliveries from sub to s until the subscription closes, a
// write fails or ctx ends. A keepAlive of zero disables pings.
func pump(ctx context.Context, sub *core.Subscription, s sink, keepAlive time.Duration) error {
	var tick <-chan time.Time
	if keepAlive > 0 {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case d, ok := <-sub.Deliveries():
			if !ok {
				return core.ErrSubscriberUnreachable
			}
			if err := s.Send(ctx, d); err != nil {
				return err
			}
		case <-tick:
			if err := s.Ping(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sseSink frames each envelope as one server-sent event named after its class.
type sseSink struct {
	w gin.ResponseWriter
}

func (s *sseSink) Send(_ context.Context, d core.Delivery) error {
	return s.write(sse.Event{
		Id:    d.Envelope.ID,
		Event: string(d.Envelope.Class),
		Data:  string(d.Payload),
	})
}

func (s *sseSink) Ping(context.Context) error {
	return s.write(sse.Event{Event: proto.EventPing, Data: ""})
}

func (s *sseSink) write(ev sse.Event) error {
	if err := sse.Encode(s.w, ev); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// wsSink writes each envelope as one JSON text frame.
type wsSink struct {
	conn        *websocket.Conn
	pingTimeout time.Duration
}

func (s *wsSink) Send(ctx context.Context, d core.Delivery) error {
	return s.conn.Write(ctx, websocket.MessageText, d.Payload)
}

func (s *wsSink) Ping(ctx context.Context) error {
	if s.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.pingTimeout)
		defer cancel()
	}
	return s.conn.Ping(ctx)
}
