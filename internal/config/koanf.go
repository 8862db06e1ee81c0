package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "WARDEN_CONFIG"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{
	"warden.yaml",
	"/etc/warden/warden.yaml",
}

// envMappings maps environment variables (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"warden_http_port":           "server.port",
	"warden_shutdown_timeout":    "server.shutdown_timeout",
	"postgres_dsn":               "postgres.dsn",
	"postgres_max_open_conns":    "postgres.max_open_conns",
	"clickhouse_dsn":             "clickhouse.dsn",
	"redis_addr":                 "redis.addr",
	"redis_password":             "redis.password",
	"redis_db":                   "redis.db",
	"warden_stats_cache_ttl":     "redis.stats_ttl",
	"discord_bot_token":          "discord.token",
	"warden_review_channel_id":   "discord.review_channel_id",
	"warden_account_cache_ttl":   "discord.account_cache_ttl",
	"warden_analysis_workers":    "analysis.workers",
	"warden_analysis_queue":      "analysis.queue_size",
	"warden_analysis_timeout_ms": "analysis.timeout_ms",
	"warden_admin_token":         "auth.admin_token",
	"warden_auth_cache_ttl":      "auth.cache_ttl",
	"warden_log_level":           "logging.level",
}

// Load builds the configuration from struct defaults, then the optional YAML
// file, then environment variables, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the config file to load, or "" when there is none.
// An explicit PathEnvVar that does not exist is an error.
func findConfigFile() (string, error) {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file %s: %w", p, err)
		}
		return p, nil
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
