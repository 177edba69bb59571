// Package config loads platform configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	RateLimitPerSec int      `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds relational store settings. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_sec"`
}

// LoggingConfig mirrors pkg/logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AdminConfig gates the administrative slot-tree surface.
type AdminConfig struct {
	DevMode bool     `yaml:"dev_mode"`
	Tokens  []string `yaml:"tokens"`
}

// RedisConfig configures the optional ad-claim history store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Admin    AdminConfig    `yaml:"admin"`
	Redis    RedisConfig    `yaml:"redis"`
}

// Load reads configuration from CONFIG_PATH (default config.yaml), applies
// .env and environment overrides, and validates the result. A missing config
// file is not an error; defaults plus environment apply.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath reads configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "" && cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 30,
			RateLimitPerSec: 50,
			RateLimitBurst:  100,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ADMIN_DEV_MODE"); v != "" {
		cfg.Admin.DevMode = v == "true" || v == "1"
	}
	if v := os.Getenv("ADMIN_TOKENS"); v != "" {
		tokens := strings.Split(v, ",")
		cfg.Admin.Tokens = cfg.Admin.Tokens[:0]
		for _, tok := range tokens {
			if tok = strings.TrimSpace(tok); tok != "" {
				cfg.Admin.Tokens = append(cfg.Admin.Tokens, tok)
			}
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}
