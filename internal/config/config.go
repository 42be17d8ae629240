// Package config defines the top-level configuration for the book sampler
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BOOKSAMPLER_* environment variables.
type Config struct {
	Exchanges []ExchangeConfig `toml:"exchanges"`
	Sampler   SamplerConfig    `toml:"sampler"`
	Proxy     ProxyConfig      `toml:"proxy"`
	Postgres  PostgresConfig   `toml:"postgres"`
	Redis     RedisConfig      `toml:"redis"`
	S3        S3Config         `toml:"s3"`
	Metrics   MetricsConfig    `toml:"metrics"`
	Server    ServerConfig     `toml:"server"`
	Replay    ReplayConfig     `toml:"replay"`
	Notify    NotifyConfig     `toml:"notify"`
	Mode      string           `toml:"mode"`
	LogLevel  string           `toml:"log_level"`
}

// ExchangeConfig describes one exchange and the symbols sampled on it.
type ExchangeConfig struct {
	Name    string   `toml:"name"`
	Symbols []string `toml:"symbols"`
	BaseURL string   `toml:"base_url"`
	// Depth is the Coinbase book level or the Binance depth limit.
	Depth    int      `toml:"depth"`
	Timeout  duration `toml:"timeout"`
	UseProxy bool     `toml:"use_proxy"`
	// RateLimit caps fetches per RateWindow across every instance sharing
	// Redis. Zero disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// SamplerConfig holds the sampling parameters.
type SamplerConfig struct {
	// Budget is the notional spent on each side of every book.
	Budget   decimal.Decimal `toml:"budget"`
	Interval duration        `toml:"interval"`
	// RunLock serialises runs across instances through Redis.
	RunLock bool `toml:"run_lock"`
}

// ProxyConfig selects where forward-proxy credentials come from.
type ProxyConfig struct {
	// SecretBackend is one of "static", "aws", "redis".
	SecretBackend string `toml:"secret_backend"`
	SecretName    string `toml:"secret_name"`
	AWSRegion     string `toml:"aws_region"`
	AWSEndpoint   string `toml:"aws_endpoint"`

	// Static credentials, used when SecretBackend is "static".
	Username string `toml:"username"`
	Password string `toml:"password"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; it backs
// the run lock, snapshot publishing and the "redis" secret backend.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// Channel receives a JSON summary of every persisted snapshot. Empty
	// disables publishing.
	Channel string `toml:"channel"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// MetricsConfig controls the Prometheus endpoint served in loop mode.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// ServerConfig controls the inspection API served in loop mode.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	// APIKey guards every route except health and metrics. Empty disables
	// authentication.
	APIKey string `toml:"api_key"`
}

// ReplayConfig holds parameters for replay mode.
type ReplayConfig struct {
	Prefix      string `toml:"prefix"`
	Concurrency int    `toml:"concurrency"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultExchanges is the exchange list used when the configuration file
// does not declare any [[exchanges]].
func DefaultExchanges() []ExchangeConfig {
	return []ExchangeConfig{
		{Name: "coinbase", Symbols: []string{"BTC-USD", "ETH-USD"}},
		{Name: "binance", Symbols: []string{"BTCUSDT", "ETHUSDT"}},
	}
}

// exchangeDefaults fills the per-exchange fields an operator usually leaves
// out.
func exchangeDefaults(ex *ExchangeConfig) {
	switch strings.ToLower(ex.Name) {
	case "coinbase":
		if ex.BaseURL == "" {
			ex.BaseURL = "https://api.exchange.coinbase.com"
		}
		if ex.Depth == 0 {
			ex.Depth = 3
		}
	case "binance":
		if ex.BaseURL == "" {
			ex.BaseURL = "https://api.binance.com"
		}
		if ex.Depth == 0 {
			ex.Depth = 5000
		}
	}
	if ex.Timeout.Duration == 0 {
		ex.Timeout = duration{30 * time.Second}
	}
}

// Defaults returns a Config populated with reasonable default values.
// Exchanges are left empty so a file's [[exchanges]] never merges into a
// default entry; Load fills them in afterwards.
func Defaults() Config {
	return Config{
		Sampler: SamplerConfig{
			Budget:   decimal.NewFromInt(100_000),
			Interval: duration{time.Minute},
		},
		Proxy: ProxyConfig{
			SecretBackend: "static",
			SecretName:    "booksampler/proxy",
			AWSRegion:     "us-east-1",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
			Channel:    "booksampler:summaries",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "booksampler-data",
			ForcePathStyle: true,
			Prefix:         "order_books",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9102",
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    ":8080",
		},
		Replay: ReplayConfig{
			Concurrency: 4,
		},
		Notify: NotifyConfig{
			Events: []string{"sample_failed", "run_complete"},
		},
		Mode:     "once",
		LogLevel: "info",
	}
}

// Targets returns the number of configured (exchange, symbol) pairs.
func (c *Config) Targets() int {
	n := 0
	for _, ex := range c.Exchanges {
		n += len(ex.Symbols)
	}
	return n
}

// NeedsProxy reports whether any exchange routes through the forward proxy.
func (c *Config) NeedsProxy() bool {
	for _, ex := range c.Exchanges {
		if ex.UseProxy {
			return true
		}
	}
	return false
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"once":   true,
	"loop":   true,
	"replay": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSecretBackends = map[string]bool{
	"static": true,
	"aws":    true,
	"redis":  true,
}

var knownExchanges = map[string]bool{
	"coinbase": true,
	"binance":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: once, loop, replay)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchanges
	if mode != "replay" && c.Targets() == 0 {
		errs = append(errs, "exchanges: at least one exchange with one symbol is required")
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for i, ex := range c.Exchanges {
		name := strings.ToLower(ex.Name)
		if !knownExchanges[name] {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: unknown exchange %q (valid: coinbase, binance)", i, ex.Name))
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: %q listed twice", i, ex.Name))
		}
		seen[name] = true
		for j, sym := range ex.Symbols {
			if strings.TrimSpace(sym) == "" {
				errs = append(errs, fmt.Sprintf("exchanges[%d].symbols[%d]: empty symbol", i, j))
			}
		}
		if ex.Depth < 0 {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: depth must be >= 0", i))
		}
		if ex.RateLimit < 0 {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: rate_limit must be >= 0", i))
		}
		if ex.RateLimit > 0 {
			if ex.RateWindow.Duration <= 0 {
				errs = append(errs, fmt.Sprintf("exchanges[%d]: rate_window must be > 0 when rate_limit is set", i))
			}
			if !c.Redis.Enabled {
				errs = append(errs, fmt.Sprintf("exchanges[%d]: rate_limit requires redis.enabled", i))
			}
		}
	}

	// Sampler
	if c.Sampler.Budget.IsNegative() {
		errs = append(errs, "sampler: budget must be >= 0")
	}
	if mode == "loop" && c.Sampler.Interval.Duration <= 0 {
		errs = append(errs, "sampler: interval must be > 0 in loop mode")
	}
	if c.Sampler.RunLock && !c.Redis.Enabled {
		errs = append(errs, "sampler: run_lock requires redis.enabled")
	}

	// Proxy
	if c.NeedsProxy() {
		backend := strings.ToLower(c.Proxy.SecretBackend)
		if !validSecretBackends[backend] {
			errs = append(errs, fmt.Sprintf("proxy: unknown secret_backend %q (valid: static, aws, redis)", c.Proxy.SecretBackend))
		}
		switch backend {
		case "static":
			if c.Proxy.Host == "" {
				errs = append(errs, "proxy: host is required for the static backend")
			}
		case "aws", "redis":
			if c.Proxy.SecretName == "" {
				errs = append(errs, "proxy: secret_name is required")
			}
		}
		if backend == "redis" && !c.Redis.Enabled {
			errs = append(errs, "proxy: the redis secret backend requires redis.enabled")
		}
	}

	// Postgres
	if mode != "replay" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}
	if c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty")
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics: addr must not be empty when enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Addr == "" {
			errs = append(errs, "server: addr must not be empty when enabled")
		}
		if c.Metrics.Enabled && c.Server.Addr == c.Metrics.Addr {
			errs = append(errs, fmt.Sprintf("server: addr %q collides with metrics.addr", c.Server.Addr))
		}
	}

	// Replay
	if mode == "replay" {
		if c.Replay.Prefix == "" {
			errs = append(errs, "replay: prefix must not be empty in replay mode")
		}
		if c.Replay.Concurrency < 1 {
			errs = append(errs, "replay: concurrency must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
