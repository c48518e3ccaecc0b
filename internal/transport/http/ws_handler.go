package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const maxCloseReason = 120

// upgradeWriter lets websocket.Accept hijack through gin's writer. gin refuses
// to hijack once its header is flushed, and Accept flushes it when the writer
// exposes WriteHeaderNow, so this type must not implement it.
type upgradeWriter struct {
	gw  gin.ResponseWriter
	raw http.ResponseWriter
}

func newUpgradeWriter(gw gin.ResponseWriter) *upgradeWriter {
	raw := http.ResponseWriter(gw)
	if u, ok := gw.(interface{ Unwrap() http.ResponseWriter }); ok {
		raw = u.Unwrap()
	}
	return &upgradeWriter{gw: gw, raw: raw}
}

func (w *upgradeWriter) Header() http.Header { return w.gw.Header() }

func (w *upgradeWriter) Write(b []byte) (int, error) { return w.gw.Write(b) }

func (w *upgradeWriter) WriteHeader(code int) {
	w.gw.WriteHeader(code)
	if code == http.StatusSwitchingProtocols {
		// Status line goes out with the hijack; gin only records it.
		w.raw.WriteHeader(code)
	}
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.gw.Hijack()
}

// Socket upgrades the request and serves a bidirectional subscription.
// Inbound frames are publish requests; outbound frames are envelopes.
// GET <room>/ws
func (h *RoomHandlers) Socket(c *gin.Context) {
	conn, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept has already answered with an error status.
		h.log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	name := h.room(c)
	engine := h.engines.Engine(name)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := engine.Subscribe(ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("room", name).Msg("subscribe failed")
		conn.Close(websocket.StatusTryAgainLater, truncateReason(err.Error()))
		return
	}
	defer engine.Unsubscribe(sub)

	h.log.Debug().Str("room", name).Str("subscriber_id", sub.ID()).Msg("ws stream opened")

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, engine, sub)
	}()
	go func() {
		errCh <- pump(ctx, sub, &wsSink{conn: conn, pingTimeout: h.opts.KeepAlive}, h.opts.KeepAlive)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	h.logStreamEnd(name, sub.ID(), err)

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch s := websocket.CloseStatus(err); {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
	case s == websocket.StatusNormalClosure, s == websocket.StatusGoingAway:
	case errors.Is(err, core.ErrSubscriberUnreachable):
		status = websocket.StatusTryAgainLater
		reason = "subscriber fell behind"
	default:
		status = websocket.StatusInternalError
		reason = truncateReason(err.Error())
		h.log.Warn().Err(err).Str("subscriber_id", sub.ID()).Msg("ws connection closed with error")
	}

	conn.Close(status, reason)
}

func (h *RoomHandlers) readLoop(ctx context.Context, conn *websocket.Conn, engine *core.Engine, sub *core.Subscription) error {
	limiter := newRateLimiter(h.opts.RateLimit)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.PublishRequest
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("subscriber_id", sub.ID()).Msg("malformed ws inbound")
			if writeErr := wsjson.Write(ctx, conn, proto.ErrorFrame{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed frame: expected {user, text}"},
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		if !limiter.allow() {
			if writeErr := wsjson.Write(ctx, conn, proto.ErrorFrame{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "rate_limited", Msg: "too many messages"},
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		if _, err := engine.Publish(ctx, core.ClassUser, inbound.User, inbound.Text); err != nil {
			if !errors.Is(err, core.ErrInvalidPayload) {
				return err
			}
			if writeErr := wsjson.Write(ctx, conn, errorFrame(err)); writeErr != nil {
				return writeErr
			}
		}
	}
}

func truncateReason(reason string) string {
	if len(reason) > maxCloseReason {
		return reason[:maxCloseReason]
	}
	return reason
}
