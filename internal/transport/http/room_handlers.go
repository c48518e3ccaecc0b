package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// EngineSource resolves a room name to its broadcast engine. Engine starts
// the room on first use; Lookup never does.
type EngineSource interface {
	Engine(name string) *core.Engine
	Lookup(name string) (*core.Engine, bool)
}

// HandlerOptions tunes the room handlers.
type HandlerOptions struct {
	KeepAlive       time.Duration
	MaxMessageBytes int64
	// RateLimit caps inline WebSocket publishes per connection per minute; 0 disables it.
	RateLimit int
}

// RoomHandlers serves the room sub-API on top of a broadcast engine.
type RoomHandlers struct {
	engines EngineSource
	room    func(c *gin.Context) string
	opts    HandlerOptions
	log     *zerolog.Logger
}

// NewRoomHandlers creates room handlers. room extracts the room name from a request.
func NewRoomHandlers(engines EngineSource, room func(c *gin.Context) string, opts HandlerOptions, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		engines: engines,
		room:    room,
		opts:    opts,
		log:     logger,
	}
}

// StatsResponse reports the state of a room.
type StatsResponse struct {
	Room        string `json:"room"`
	Subscribers int    `json:"subscribers"`
}

// Events opens a server-sent events subscription.
// GET <room>/events
func (h *RoomHandlers) Events(c *gin.Context) {
	name := h.room(c)
	engine := h.engines.Engine(name)
	ctx := c.Request.Context()

	sub, err := engine.Subscribe(ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("room", name).Msg("subscribe failed")
		c.JSON(statusFor(err), proto.ErrorResponse{Error: err.Error()})
		return
	}
	defer engine.Unsubscribe(sub)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	h.log.Debug().Str("room", name).Str("subscriber_id", sub.ID()).Msg("sse stream opened")
	err = pump(ctx, sub, &sseSink{w: c.Writer}, h.opts.KeepAlive)
	h.logStreamEnd(name, sub.ID(), err)
}

// Message publishes a user message to the room.
// POST <room>/message
func (h *RoomHandlers) Message(c *gin.Context) {
	if h.opts.MaxMessageBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxMessageBytes)
	}

	var req proto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid publish request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{
			Error: "invalid payload: expected non-empty string fields user and text",
			Code:  core.ErrCodeInvalidPayload,
		})
		return
	}

	name := h.room(c)
	env, err := h.engines.Engine(name).Publish(c.Request.Context(), core.ClassUser, req.User, req.Text)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("room", name).Msg("publish failed")
		}
		c.JSON(status, proto.ErrorResponse{Error: err.Error(), Code: core.AsCoreError(err).Code})
		return
	}

	h.log.Debug().Str("room", name).Str("message_id", env.ID).Str("user", env.Sender).Msg("message published")
	c.JSON(http.StatusOK, proto.PublishResponse{OK: true})
}

// Stats reports the number of subscribers in the room. A room nobody has
// joined yet reports zero and is not started.
// GET <room>/stats
func (h *RoomHandlers) Stats(c *gin.Context) {
	resp := StatsResponse{Room: h.room(c)}
	if e, ok := h.engines.Lookup(resp.Room); ok {
		resp.Room = e.Name()
		resp.Subscribers = e.Subscribers()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RoomHandlers) logStreamEnd(room, subscriberID string, err error) {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		h.log.Debug().Str("room", room).Str("subscriber_id", subscriberID).Msg("stream closed by client")
	case errors.Is(err, core.ErrSubscriberUnreachable):
		h.log.Warn().Str("room", room).Str("subscriber_id", subscriberID).Msg("stream closed: subscriber dropped")
	default:
		h.log.Debug().Err(err).Str("room", room).Str("subscriber_id", subscriberID).Msg("stream closed")
	}
}
