package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/room"
)

// RoomRoutes mounts the room sub-API on a router group. The implementation
// is chosen once at boot: local engine or forwarding to the room actor.
type RoomRoutes interface {
	Register(g *gin.RouterGroup, transport string)
}

// EngineRoutes serves rooms from engines owned by this process.
type EngineRoutes struct {
	handlers *RoomHandlers
	guard    gin.HandlerFunc
}

// NewLocalRoutes serves the single configured room from a process-local engine.
func NewLocalRoutes(engines EngineSource, name string, opts HandlerOptions, logger *zerolog.Logger) *EngineRoutes {
	return &EngineRoutes{
		handlers: NewRoomHandlers(engines, func(*gin.Context) string { return name }, opts, logger),
	}
}

// NewActorRoutes serves the rooms listed in rooms, named by the :room path
// parameter. Other names get 404 and never start an engine.
func NewActorRoutes(engines EngineSource, rooms []string, opts HandlerOptions, logger *zerolog.Logger) *EngineRoutes {
	return &EngineRoutes{
		handlers: NewRoomHandlers(engines, func(c *gin.Context) string { return c.Param("room") }, opts, logger),
		guard:    knownRooms(rooms),
	}
}

func knownRooms(rooms []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(rooms))
	for _, name := range rooms {
		allowed[name] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[c.Param("room")]; !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, proto.ErrorResponse{Error: "unknown room"})
			return
		}
		c.Next()
	}
}

// Register implements RoomRoutes.
func (r *EngineRoutes) Register(g *gin.RouterGroup, transport string) {
	if r.guard != nil {
		g.Use(r.guard)
	}
	if transport == config.TransportWebSocket {
		g.GET("/ws", r.handlers.Socket)
	} else {
		g.GET("/events", r.handlers.Events)
	}
	g.POST("/message", r.handlers.Message)
	g.GET("/stats", r.handlers.Stats)
}

// ForwardRoutes relays the room sub-API to the room actor.
type ForwardRoutes struct {
	fwd *room.Forwarder
}

// NewForwardRoutes wraps a forwarder.
func NewForwardRoutes(fwd *room.Forwarder) *ForwardRoutes {
	return &ForwardRoutes{fwd: fwd}
}

// Register implements RoomRoutes.
func (r *ForwardRoutes) Register(g *gin.RouterGroup, transport string) {
	if transport == config.TransportWebSocket {
		g.GET("/ws", gin.WrapH(r.fwd.Handler("ws")))
	} else {
		g.GET("/events", gin.WrapH(r.fwd.Handler("events")))
	}
	g.POST("/message", gin.WrapH(r.fwd.Handler("message")))
	g.GET("/stats", gin.WrapH(r.fwd.Handler("stats")))
}
