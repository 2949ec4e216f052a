package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Addr      string `env:"ADDR" default:"127.0.0.1:3030"`
	AppURL    string `env:"APP_URL"` // empty: accept websocket joins from any origin
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	PlaylistCapacity   int  `env:"PLAYLIST_CAPACITY" default:"20"`
	ReapEmptyPlaylists bool `env:"REAP_EMPTY_PLAYLISTS" default:"true"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"20"`
	StatusRate              float64 `env:"STATUS_RATE" default:"20"`
	StatusBurst             int     `env:"STATUS_BURST" default:"40"`

	WriteTimeout    time.Duration `env:"WS_WRITE_TIMEOUT" default:"5s"`
	PingInterval    time.Duration `env:"WS_PING_INTERVAL" default:"30s"`
	PongTimeout     time.Duration `env:"WS_PONG_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("ADDR must be host:port: %w", err)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	positive := map[string]int{
		"PLAYLIST_CAPACITY":         cfg.PlaylistCapacity,
		"MAX_WEBSOCKET_CONNECTIONS": cfg.MaxWebSocketConnections,
		"MAX_CONNECTIONS_PER_IP":    cfg.MaxConnectionsPerIP,
		"CONNECTION_BURST":          cfg.ConnectionBurst,
		"STATUS_BURST":              cfg.StatusBurst,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.ConnectionRate <= 0 || cfg.StatusRate <= 0 {
		return errors.New("CONNECTION_RATE and STATUS_RATE must be positive")
	}

	if cfg.WriteTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("WS_WRITE_TIMEOUT and SHUTDOWN_TIMEOUT must be positive")
	}

	if cfg.PingInterval <= 0 || cfg.PongTimeout <= cfg.PingInterval {
		return fmt.Errorf("WS_PONG_TIMEOUT (%s) must exceed WS_PING_INTERVAL (%s)", cfg.PongTimeout, cfg.PingInterval)
	}

	return nil
}
