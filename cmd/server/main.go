package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/app"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	applog "github.com/vovakirdan/wirechat-relay/internal/log"
)

var (
	configPath string
	overrides  config.Config
	actor      bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Real-time chat relay",
	Long: `Relay fans chat messages out to every connected subscriber of a room.

Without a singleton binding the room lives in this process only. With
room.singleton_binding set, every request is forwarded to the room actor
so all instances share one room.

Examples:
  relay                                           # local room on :8080
  relay --transport websocket                     # WebSocket instead of SSE
  relay --actor --addr :9000                      # host the room actor
  RELAY_ROOM_SINGLETON_BINDING=http://actor:9000 relay`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config file")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&overrides.Transport, "transport", "", "subscriber transport (sse, websocket)")
	flags.DurationVar(&overrides.KeepAliveInterval, "keepalive", 0, "keep-alive interval for open streams")
	flags.StringVar(&overrides.Room.Name, "room", "", "room name")
	flags.StringSliceVar(&overrides.Room.SingletonBinding, "singleton-binding", nil, "room actor endpoints")
	flags.BoolVar(&actor, "actor", false, "host room actors for other instances")
	flags.StringSliceVar(&overrides.Actor.Rooms, "actor-rooms", nil, "room names the actor serves (default: room name)")
}

func runServer(cmd *cobra.Command, _ []string) error {
	bootLogger := applog.New("info", "console")

	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(overrides)
	if cmd.Flags().Changed("actor") {
		cfg.Actor.Enabled = actor
	}

	logger := applog.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", path).Str("transport", cfg.Transport).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting relay")
	start := time.Now()
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Dur("uptime", time.Since(start)).Msg("server stopped")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
