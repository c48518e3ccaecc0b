package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	Transport         string        `mapstructure:"transport" yaml:"transport"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval" yaml:"keepalive_interval"`
	SubscriberBuffer  int           `mapstructure:"subscriber_buffer" yaml:"subscriber_buffer"`
	WSRateLimit       int           `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`
	Room              RoomConfig    `mapstructure:"room" yaml:"room"`
	Actor             ActorConfig   `mapstructure:"actor" yaml:"actor"`
}

// RoomConfig selects how the room is resolved.
type RoomConfig struct {
	// Name is the logical room name; in singleton mode it picks the actor.
	Name string `mapstructure:"name" yaml:"name"`
	// SingletonBinding lists room actor endpoints. Empty means local fallback.
	SingletonBinding []string `mapstructure:"singleton_binding" yaml:"singleton_binding"`
}

// ActorConfig controls whether this process hosts room actors.
type ActorConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Rooms the actor is willing to host. Empty means room.name only.
	Rooms []string `mapstructure:"rooms" yaml:"rooms"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   64 << 10,
		Transport:         TransportSSE,
		KeepAliveInterval: 20 * time.Second,
		SubscriberBuffer:  64,
		Room: RoomConfig{
			Name:             "lobby",
			SingletonBinding: []string{},
		},
		Actor: ActorConfig{
			Rooms: []string{},
		},
	}
}

// ActorRooms returns the room names an actor host serves.
func (c *Config) ActorRooms() []string {
	rooms := make([]string, 0, len(c.Actor.Rooms))
	for _, name := range c.Actor.Rooms {
		if name = strings.TrimSpace(name); name != "" {
			rooms = append(rooms, name)
		}
	}
	if len(rooms) == 0 {
		return []string{c.Room.Name}
	}
	return rooms
}

// Singleton reports whether a room actor binding is configured.
func (c *Config) Singleton() bool {
	for _, ep := range c.Room.SingletonBinding {
		if strings.TrimSpace(ep) != "" {
			return true
		}
	}
	return false
}

// Validate checks values that would otherwise fail at request time.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSSE, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q (want %q or %q)", c.Transport, TransportSSE, TransportWebSocket)
	}
	if strings.TrimSpace(c.Room.Name) == "" {
		return fmt.Errorf("room.name is required")
	}
	if c.SubscriberBuffer < 0 {
		return fmt.Errorf("subscriber_buffer must not be negative")
	}
	if c.WSRateLimit < 0 {
		return fmt.Errorf("ws_rate_limit must not be negative")
	}
	if c.KeepAliveInterval < 0 {
		return fmt.Errorf("keepalive_interval must not be negative")
	}
	for _, ep := range c.Room.SingletonBinding {
		if strings.TrimSpace(ep) == "" {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(ep))
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid singleton_binding endpoint %q", ep)
		}
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.Transport != "" {
		c.Transport = other.Transport
	}
	if other.KeepAliveInterval != 0 {
		c.KeepAliveInterval = other.KeepAliveInterval
	}
	if other.SubscriberBuffer != 0 {
		c.SubscriberBuffer = other.SubscriberBuffer
	}
	if other.WSRateLimit != 0 {
		c.WSRateLimit = other.WSRateLimit
	}
	if other.Room.Name != "" {
		c.Room.Name = other.Room.Name
	}
	if len(other.Room.SingletonBinding) > 0 {
		c.Room.SingletonBinding = other.Room.SingletonBinding
	}
	if len(other.Actor.Rooms) > 0 {
		c.Actor.Rooms = other.Actor.Rooms
	}
	if other.Actor.Enabled {
		c.Actor.Enabled = true
	}
}
