package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Scripts   ScriptsConfig
	Relay     RelayConfig
	Mods      ModsConfig
	Locale    LocaleConfig
	Realm     RealmConfig
	Page      PageConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StoreConfig holds durable store configuration. An empty Dir keeps
// everything in memory.
type StoreConfig struct {
	Dir      string `envconfig:"STORE_DIR" default:""`
	Compress bool   `envconfig:"STORE_COMPRESS" default:"true"`
}

// ScriptsConfig holds remote script fetch configuration.
type ScriptsConfig struct {
	BaseURL  string        `envconfig:"SCRIPT_BASE_URL" default:"https://pastebin.com/raw"`
	MaxBytes int64         `envconfig:"SCRIPT_MAX_BYTES" default:"1048576"`
	Timeout  time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"15s"`
	Retries  int           `envconfig:"SCRIPT_RETRIES" default:"2"`
	RPS      float64       `envconfig:"SCRIPT_RPS" default:"0"`
}

// RelayConfig holds message relay timing.
type RelayConfig struct {
	RequestTimeout time.Duration `envconfig:"RELAY_REQUEST_TIMEOUT" default:"10s"`
	AckTimeout     time.Duration `envconfig:"RELAY_ACK_TIMEOUT" default:"3s"`
}

// ModsConfig locates the bundled local mods.
type ModsConfig struct {
	Dir          string `envconfig:"MODS_DIR" default:"mods"`
	ManifestPath string `envconfig:"MODS_MANIFEST" default:"mods/manifest.yaml"`
}

// LocaleConfig locates translation bundles.
type LocaleConfig struct {
	Dir     string `envconfig:"LOCALE_DIR" default:"locales"`
	Default string `envconfig:"LOCALE_DEFAULT" default:"en"`
}

// RealmConfig holds page realm execution limits.
type RealmConfig struct {
	ExecTimeout   time.Duration `envconfig:"REALM_EXEC_TIMEOUT" default:"5s"`
	RetryInterval time.Duration `envconfig:"REALM_RETRY_INTERVAL" default:"250ms"`
	MaxRetries    int           `envconfig:"REALM_MAX_RETRIES" default:"20"`
}

// PageConfig holds page host configuration.
type PageConfig struct {
	CoordinatorURL string `envconfig:"COORDINATOR_URL" default:"ws://localhost:8000/bridge"`
	HTMLPath       string `envconfig:"PAGE_HTML" default:""`
	ModsURL        string `envconfig:"MODS_URL" default:"http://localhost:8000/modfiles"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Store: StoreConfig{
			Compress: true,
		},
		Scripts: ScriptsConfig{
			BaseURL:  "https://pastebin.com/raw",
			MaxBytes: 1 << 20,
			Timeout:  15 * time.Second,
			Retries:  2,
		},
		Relay: RelayConfig{
			RequestTimeout: 10 * time.Second,
			AckTimeout:     3 * time.Second,
		},
		Mods: ModsConfig{
			Dir:          "mods",
			ManifestPath: "mods/manifest.yaml",
		},
		Locale: LocaleConfig{
			Dir:     "locales",
			Default: "en",
		},
		Realm: RealmConfig{
			ExecTimeout:   5 * time.Second,
			RetryInterval: 250 * time.Millisecond,
			MaxRetries:    20,
		},
		Page: PageConfig{
			CoordinatorURL: "ws://localhost:8000/bridge",
			ModsURL:        "http://localhost:8000/modfiles",
		},
	}
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
