package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/booksampler/internal/blob/s3"
	"github.com/alanyoungcy/booksampler/internal/cache/redis"
	"github.com/alanyoungcy/booksampler/internal/config"
	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/metrics"
	"github.com/alanyoungcy/booksampler/internal/notify"
	"github.com/alanyoungcy/booksampler/internal/pipeline"
	"github.com/alanyoungcy/booksampler/internal/platform"
	"github.com/alanyoungcy/booksampler/internal/secrets"
	"github.com/alanyoungcy/booksampler/internal/server/handler"
	"github.com/alanyoungcy/booksampler/internal/store/postgres"
)

// Dependencies bundles what the modes need. Optional pieces are nil when not
// configured.
type Dependencies struct {
	Targets []pipeline.Target

	// Persistence
	Archive          domain.BookArchive
	BlobReader       domain.BlobReader
	Recorder         domain.SnapshotRecorder
	SummaryStore     domain.SummaryStore
	TransactionStore domain.TransactionStore

	// HealthChecks ping each opened connection for the inspection API.
	HealthChecks map[string]handler.Check

	// Optional
	LockManager domain.LockManager
	Publisher   domain.SnapshotPublisher
	SummaryFeed domain.SummaryFeed
	Notifier    *notify.Notifier
	Metrics     *metrics.Collector
}

// Wire constructs the concrete dependencies for cfg.Mode and returns them with
// a cleanup function releasing every opened connection.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: map[string]handler.Check{}}
	mode := strings.ToLower(cfg.Mode)

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		redisClient = c
		closers = append(closers, func() { _ = c.Close() })
		deps.HealthChecks["redis"] = c.Ping

		if cfg.Sampler.RunLock {
			deps.LockManager = redis.NewLockManager(c)
		}
		if cfg.Redis.Channel != "" {
			pub := redis.NewSummaryPublisher(c, cfg.Redis.Channel)
			deps.Publisher = pub
			deps.SummaryFeed = pub
		}
	}

	// --- Exchange adapters ---
	if mode != "replay" {
		var proxy *domain.ProxyCredentials
		if cfg.NeedsProxy() {
			store, err := secretStore(ctx, cfg.Proxy, redisClient)
			if err != nil {
				return fail(fmt.Errorf("wire: proxy secrets: %w", err))
			}
			creds, err := store.ProxyCredentials(ctx, cfg.Proxy.SecretName)
			if err != nil {
				return fail(fmt.Errorf("wire: proxy credentials: %w", err))
			}
			proxy = &creds
		}

		targets, err := buildTargets(cfg.Exchanges, proxy, redisClient)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		deps.Targets = targets
	}

	// --- PostgreSQL ---
	if mode != "replay" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Recorder = postgres.NewRecorder(pgClient)
		deps.SummaryStore = postgres.NewSummaryStore(pgClient.Pool())
		deps.TransactionStore = postgres.NewTransactionStore(pgClient.Pool())
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- S3 ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: s3: %w", err))
	}
	closers = append(closers, func() { _ = s3Client.Close() })
	deps.HealthChecks["s3"] = s3Client.Health
	deps.Archive = s3blob.NewBookArchive(s3blob.NewWriter(s3Client), cfg.S3.Prefix)
	deps.BlobReader = s3blob.NewReader(s3Client)

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(buildSenders(cfg.Notify), cfg.Notify.Events, logger)

	// --- Metrics ---
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	return deps, cleanup, nil
}

// secretStore picks the proxy credential backend.
func secretStore(ctx context.Context, cfg config.ProxyConfig, redisClient *redis.Client) (domain.SecretStore, error) {
	switch strings.ToLower(cfg.SecretBackend) {
	case "", "static":
		return secrets.NewStaticStore(domain.ProxyCredentials{
			Username: cfg.Username,
			Password: cfg.Password,
			Host:     cfg.Host,
			Port:     cfg.Port,
		}), nil
	case "aws":
		return secrets.NewAWSStore(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis secret backend needs redis.enabled")
		}
		return redis.NewSecretStore(redisClient), nil
	default:
		return nil, fmt.Errorf("unknown secret backend %q", cfg.SecretBackend)
	}
}

// buildTargets expands the exchange list into one target per symbol, in
// configuration order. proxy is applied only to exchanges with use_proxy;
// a rate limiter only to exchanges with rate_limit.
func buildTargets(exchanges []config.ExchangeConfig, proxy *domain.ProxyCredentials, redisClient *redis.Client) ([]pipeline.Target, error) {
	var targets []pipeline.Target
	for _, ex := range exchanges {
		sc := platform.SourceConfig{
			BaseURL: ex.BaseURL,
			Depth:   ex.Depth,
			Timeout: ex.Timeout.Duration,
		}
		if ex.UseProxy {
			sc.Proxy = proxy
		}
		src, err := platform.NewSource(ex.Name, sc)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", ex.Name, err)
		}
		var limiter domain.FetchLimiter
		if ex.RateLimit > 0 {
			if redisClient == nil {
				return nil, fmt.Errorf("exchange %s: rate_limit needs redis.enabled", ex.Name)
			}
			limiter = redis.NewRateLimiter(redisClient, ex.RateLimit, ex.RateWindow.Duration)
		}
		for _, sym := range ex.Symbols {
			targets = append(targets, pipeline.Target{Source: src, Symbol: strings.TrimSpace(sym), Limiter: limiter})
		}
	}
	return targets, nil
}

func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}
