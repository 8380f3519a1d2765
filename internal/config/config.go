// Package config loads the server configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables with the JOKES_ prefix (JOKES_PORT, JOKES_DB_DSN, ...).
// A variable that is not set leaves the value from the earlier layers alone.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "JOKES"

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	GitHub   GitHubConfig   `toml:"github"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Host            string        `toml:"host" envconfig:"HOST"`
	Port            int           `toml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `toml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `toml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// AuthRateLimit is the sustained requests/second allowed per client IP on
	// the register and login endpoints; AuthRateBurst is the bucket size.
	AuthRateLimit float64 `toml:"auth_rate_limit" envconfig:"AUTH_RATE_LIMIT"`
	AuthRateBurst int     `toml:"auth_rate_burst" envconfig:"AUTH_RATE_BURST"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite, mysql, postgres.
	Driver          string        `toml:"driver" envconfig:"DB_DRIVER"`
	DSN             string        `toml:"dsn" envconfig:"DB_DSN"`
	MaxOpenConns    int           `toml:"max_open_conns" envconfig:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `toml:"max_idle_conns" envconfig:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" envconfig:"DB_CONN_MAX_LIFETIME"`
}

type AuthConfig struct {
	JWTSecret string        `toml:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `toml:"token_ttl" envconfig:"TOKEN_TTL"`
	// SecureCookie sets the Secure flag on the session cookie (HTTPS only).
	SecureCookie bool `toml:"secure_cookie" envconfig:"SECURE_COOKIE"`
}

// GitHubConfig enables GitHub sign-in when ClientID is set.
type GitHubConfig struct {
	ClientID     string `toml:"client_id" envconfig:"GITHUB_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" envconfig:"GITHUB_CLIENT_SECRET"`
	CallbackURL  string `toml:"callback_url" envconfig:"GITHUB_CALLBACK_URL"`
}

// RedisConfig enables the shared token revocation list when Addr is set.
type RedisConfig struct {
	Addr     string `toml:"addr" envconfig:"REDIS_ADDR"`
	Password string `toml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `toml:"db" envconfig:"REDIS_DB"`
}

// RabbitMQConfig enables activity event publishing when URL is set.
type RabbitMQConfig struct {
	URL   string `toml:"url" envconfig:"RABBITMQ_URL"`
	Queue string `toml:"queue" envconfig:"RABBITMQ_QUEUE"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" envconfig:"LOG_LEVEL"`
	// Format is text or json.
	Format string `toml:"format" envconfig:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing overrides it: a local
// sqlite file and every optional integration disabled.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AuthRateLimit:   1,
			AuthRateBurst:   5,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "data/jokes.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		RabbitMQ: RabbitMQConfig{
			Queue: "jokes.activity",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the TOML file named by
// JOKES_CONFIG_FILE (default configs/config.toml, skipped when absent) and
// the environment.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv(envPrefix + "_CONFIG_FILE")
	if path == "" {
		path = "configs/config.toml"
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: checking %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return nil
}

// loadEnv processes each section separately so variables stay flat
// (JOKES_DB_DSN rather than JOKES_DATABASE_DB_DSN).
func (c *Config) loadEnv() error {
	sections := []struct {
		name string
		target any
	}{
		{"server", &c.Server},
		{"database", &c.Database},
		{"auth", &c.Auth},
		{"github", &c.GitHub},
		{"redis", &c.Redis},
		{"rabbitmq", &c.RabbitMQ},
		{"log", &c.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process(envPrefix, s.target); err != nil {
			return fmt.Errorf("config: loading %s settings: %w", s.name, err)
		}
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"sqlite", "mysql", "postgres"}, c.Database.Driver) {
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("config: %s requires JOKES_DB_DSN", c.Database.Driver)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: JOKES_JWT_SECRET must be at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: token TTL must be positive")
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}
