package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = "tenant-console"
	envPrefix  = "TENANT_CONSOLE"
)

// Config holds all runtime settings for the console backend
type Config struct {
	Env      string         `mapstructure:"env"`
	TenantID string         `mapstructure:"tenant_id"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Poll     PollConfig     `mapstructure:"poll"`
	Server   ServerConfig   `mapstructure:"server"`
}

// APIConfig configures the tenant REST API client
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst     int           `mapstructure:"burst"`
}

// DatabaseConfig points at the local store (sqlite:// or postgres://)
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// PollConfig tunes the import run status poller
type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Env: "development",
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 60 * time.Second,
			Burst:   10,
		},
		Database: DatabaseConfig{
			URL:             "sqlite://./tenant-console.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
		Poll: PollConfig{
			Interval:      2 * time.Second,
			RetryDelay:    3 * time.Second,
			MaxRetryDelay: 30 * time.Second,
			MaxRetries:    10,
			Timeout:       30 * time.Minute,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8787"},
	}
}

// Load reads configuration from defaults, the config file, a .env file and
// TENANT_CONSOLE_* environment variables, in increasing priority.
// An empty configFile searches ~/.tenant-console and the working directory.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tenant-console"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the poller or client misbehave
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Poll.RetryDelay <= 0 {
		return fmt.Errorf("poll.retry_delay must be positive")
	}
	if c.Poll.MaxRetries < 1 {
		return fmt.Errorf("poll.max_retries must be at least 1")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("env", d.Env)
	v.SetDefault("tenant_id", d.TenantID)

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.token", d.API.Token)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.rate_limit", d.API.RateLimit)
	v.SetDefault("api.burst", d.API.Burst)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.retry_delay", d.Poll.RetryDelay)
	v.SetDefault("poll.max_retry_delay", d.Poll.MaxRetryDelay)
	v.SetDefault("poll.max_retries", d.Poll.MaxRetries)
	v.SetDefault("poll.timeout", d.Poll.Timeout)

	v.SetDefault("server.addr", d.Server.Addr)
}
