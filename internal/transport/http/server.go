package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/room"
)

// RoomPrefix is the public room root.
const RoomPrefix = "/api/room"

// NewServer builds the HTTP server. routes serves the public room API; when
// actor is non-nil this process also hosts room actors under room.InternalPrefix.
func NewServer(cfg *config.Config, routes RoomRoutes, actor EngineSource, opts HandlerOptions, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggerMiddleware(logger))

	r.GET("/health", healthHandler)
	routes.Register(r.Group(RoomPrefix), cfg.Transport)
	if actor != nil {
		NewActorRoutes(actor, cfg.ActorRooms(), opts, logger).Register(r.Group(room.InternalPrefix+"/:room"), cfg.Transport)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
