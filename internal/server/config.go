// Package server provides configuration helpers that define runtime defaults,
// validation, and environment loading for the roomchat service.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Env      string `env:"APP_ENV"`
	LogLevel string `env:"LOG_LEVEL"`
	Port     string `env:"SERVER_PORT"`

	// AllowedOrigins is a comma separated allow-list; "*" admits any origin.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	MaxMessageSize int64  `env:"MAX_MESSAGE_SIZE"`

	RateLimitBurst  int           `env:"RATE_LIMIT_BURST"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`

	// PongWait is the inactivity period after which a connection is
	// considered gone.
	PongWait   time.Duration `env:"PONG_WAIT"`
	WriteWait  time.Duration `env:"WRITE_WAIT"`
	SendBuffer int           `env:"SEND_BUFFER"`

	// JWTSecret enables bearer-token checks on the upgrade endpoint when set.
	JWTSecret       string        `env:"JWT_SECRET"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

func defaultConfig() Config {
	return Config{
		Env:             "dev",
		LogLevel:        "info",
		Port:            ":8080",
		AllowedOrigins:  "http://localhost:8080",
		MaxMessageSize:  4096,
		RateLimitBurst:  5,
		RateLimitRefill: time.Second,
		PongWait:        30 * time.Second,
		WriteWait:       10 * time.Second,
		SendBuffer:      256,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads the configuration from the environment on top of the
// defaults. Unset or non-positive values fall back to the defaults.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = def.Env
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = def.RateLimitBurst
	}
	if cfg.RateLimitRefill <= 0 {
		cfg.RateLimitRefill = def.RateLimitRefill
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

// pingPeriod must stay below PongWait so an idle but healthy peer always
// answers before its read deadline passes.
func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
