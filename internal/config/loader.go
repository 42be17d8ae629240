package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKSAMPLER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	finish(&cfg)
	return &cfg, nil
}

// Parse is Load for an in-memory TOML document.
func Parse(doc string) (*Config, error) {
	cfg := Defaults()
	if _, err := toml.Decode(doc, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	finish(&cfg)
	return &cfg, nil
}

func finish(cfg *Config) {
	if len(cfg.Exchanges) == 0 {
		cfg.Exchanges = DefaultExchanges()
	}
	applyEnvOverrides(cfg)
	for i := range cfg.Exchanges {
		exchangeDefaults(&cfg.Exchanges[i])
	}
}

// applyEnvOverrides reads well-known BOOKSAMPLER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchanges ──
	for i := range cfg.Exchanges {
		ex := &cfg.Exchanges[i]
		prefix := "BOOKSAMPLER_" + strings.ToUpper(ex.Name) + "_"
		setStringSlice(&ex.Symbols, prefix+"SYMBOLS")
		setStr(&ex.BaseURL, prefix+"BASE_URL")
		setInt(&ex.Depth, prefix+"DEPTH")
		setDuration(&ex.Timeout, prefix+"TIMEOUT")
		setBool(&ex.UseProxy, prefix+"USE_PROXY")
	}

	// ── Sampler ──
	setDecimal(&cfg.Sampler.Budget, "BOOKSAMPLER_SAMPLER_BUDGET")
	setDuration(&cfg.Sampler.Interval, "BOOKSAMPLER_SAMPLER_INTERVAL")
	setBool(&cfg.Sampler.RunLock, "BOOKSAMPLER_SAMPLER_RUN_LOCK")

	// ── Proxy ──
	setStr(&cfg.Proxy.SecretBackend, "BOOKSAMPLER_PROXY_SECRET_BACKEND")
	setStr(&cfg.Proxy.SecretName, "BOOKSAMPLER_PROXY_SECRET_NAME")
	setStr(&cfg.Proxy.AWSRegion, "BOOKSAMPLER_PROXY_AWS_REGION")
	setStr(&cfg.Proxy.AWSEndpoint, "BOOKSAMPLER_PROXY_AWS_ENDPOINT")
	setStr(&cfg.Proxy.Username, "BOOKSAMPLER_PROXY_USERNAME")
	setStr(&cfg.Proxy.Password, "BOOKSAMPLER_PROXY_PASSWORD")
	setStr(&cfg.Proxy.Host, "BOOKSAMPLER_PROXY_HOST")
	setStr(&cfg.Proxy.Port, "BOOKSAMPLER_PROXY_PORT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BOOKSAMPLER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "BOOKSAMPLER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BOOKSAMPLER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BOOKSAMPLER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BOOKSAMPLER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BOOKSAMPLER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BOOKSAMPLER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BOOKSAMPLER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BOOKSAMPLER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BOOKSAMPLER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BOOKSAMPLER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BOOKSAMPLER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKSAMPLER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKSAMPLER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKSAMPLER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOOKSAMPLER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOOKSAMPLER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Channel, "BOOKSAMPLER_REDIS_CHANNEL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BOOKSAMPLER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BOOKSAMPLER_S3_REGION")
	setStr(&cfg.S3.Bucket, "BOOKSAMPLER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BOOKSAMPLER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BOOKSAMPLER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BOOKSAMPLER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BOOKSAMPLER_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "BOOKSAMPLER_S3_PREFIX")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "BOOKSAMPLER_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "BOOKSAMPLER_METRICS_ADDR")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BOOKSAMPLER_SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "BOOKSAMPLER_SERVER_ADDR")
	setStr(&cfg.Server.APIKey, "BOOKSAMPLER_SERVER_API_KEY")

	// ── Replay ──
	setStr(&cfg.Replay.Prefix, "BOOKSAMPLER_REPLAY_PREFIX")
	setInt(&cfg.Replay.Concurrency, "BOOKSAMPLER_REPLAY_CONCURRENCY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BOOKSAMPLER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BOOKSAMPLER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BOOKSAMPLER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BOOKSAMPLER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOOKSAMPLER_MODE")
	setStr(&cfg.LogLevel, "BOOKSAMPLER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
