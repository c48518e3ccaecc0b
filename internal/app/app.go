package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/room"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	host            *room.Host
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. The room mode
// is decided here, once: with a singleton binding every room request is
// forwarded to the room actor, otherwise the room lives in this process.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	host := room.NewHost(logger, core.WithSubscriberBuffer(cfg.SubscriberBuffer))
	opts := transporthttp.HandlerOptions{
		KeepAlive:       cfg.KeepAliveInterval,
		MaxMessageBytes: cfg.MaxMessageBytes,
		RateLimit:       cfg.WSRateLimit,
	}

	var routes transporthttp.RoomRoutes
	if cfg.Singleton() {
		dir, err := room.NewDirectory(cfg.Room.SingletonBinding)
		if err != nil {
			host.Close()
			return nil, fmt.Errorf("build room directory: %w", err)
		}
		endpoint, err := dir.Lookup(cfg.Room.Name)
		if err != nil {
			host.Close()
			return nil, fmt.Errorf("resolve room %q: %w", cfg.Room.Name, err)
		}
		logger.Info().Str("room", cfg.Room.Name).Str("actor", endpoint.String()).Msg("singleton mode: forwarding to room actor")
		routes = transporthttp.NewForwardRoutes(room.NewForwarder(dir, cfg.Room.Name, logger))
	} else {
		logger.Warn().Str("room", cfg.Room.Name).
			Msg("no singleton binding: room is local to this process and not shared with other instances")
		host.Engine(cfg.Room.Name)
		routes = transporthttp.NewLocalRoutes(host, cfg.Room.Name, opts, logger)
	}

	var actor transporthttp.EngineSource
	if cfg.Actor.Enabled {
		logger.Info().Str("prefix", room.InternalPrefix).Strs("rooms", cfg.ActorRooms()).Msg("hosting room actors")
		actor = host
	}

	server := transporthttp.NewServer(cfg, routes, actor, opts, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		host:            host,
		log:             logger,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.Close()
		return err
	case <-ctx.Done():
		// Stop rooms first so open streams end and Shutdown can drain.
		a.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// Close stops every room hosted by this process.
func (a *App) Close() {
	if a.host != nil {
		a.host.Close()
		a.log.Info().Msg("rooms closed")
	}
}
