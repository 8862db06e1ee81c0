// Package config loads the warden server configuration.
package config

import (
	"time"

	"github.com/triage-ai/warden/internal/engine"
)

// Config is the full server configuration.
type Config struct {
	Server     ServerConfig          `koanf:"server"`
	Postgres   PostgresConfig        `koanf:"postgres"`
	ClickHouse ClickHouseConfig      `koanf:"clickhouse"`
	Redis      RedisConfig           `koanf:"redis"`
	Discord    DiscordConfig         `koanf:"discord"`
	Analysis   AnalysisConfig        `koanf:"analysis"`
	Auth       AuthConfig            `koanf:"auth"`
	Logging    LoggingConfig         `koanf:"logging"`
	Cooldowns  engine.CooldownPolicy `koanf:"cooldowns"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type PostgresConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// ClickHouseConfig is optional; an empty DSN logs enforcement events instead.
type ClickHouseConfig struct {
	DSN string `koanf:"dsn"`
}

// RedisConfig is optional; an empty Addr reads message stats from Postgres directly.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	StatsTTL time.Duration `koanf:"stats_ttl"`
}

// DiscordConfig is optional; without a token account profiles are unavailable
// and review notices are not sent.
type DiscordConfig struct {
	Token           string        `koanf:"token"`
	ReviewChannelID string        `koanf:"review_channel_id"`
	AccountCacheTTL time.Duration `koanf:"account_cache_ttl"`
}

type AnalysisConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
	TimeoutMs int `koanf:"timeout_ms"`
}

// Timeout returns the per-analysis deadline.
func (a AnalysisConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

type AuthConfig struct {
	AdminToken string        `koanf:"admin_token"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			StatsTTL: 5 * time.Minute,
		},
		Discord: DiscordConfig{
			AccountCacheTTL: 10 * time.Minute,
		},
		Analysis: AnalysisConfig{
			Workers:   4,
			QueueSize: 1024,
			TimeoutMs: 300,
		},
		Auth: AuthConfig{
			CacheTTL: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
