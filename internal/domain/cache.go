package domain

import (
	"context"
	"time"
)

// ProxyCredentials are the forward-proxy settings for adapters whose upstream
// rejects requests from some network origins.
type ProxyCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     string `json:"port"`
}

// Complete reports whether the credentials name a reachable proxy.
func (c ProxyCredentials) Complete() bool {
	return c.Host != "" && c.Port != ""
}

// SecretStore looks up named secrets.
type SecretStore interface {
	ProxyCredentials(ctx context.Context, name string) (ProxyCredentials, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SnapshotPublisher broadcasts freshly persisted snapshot summaries.
type SnapshotPublisher interface {
	PublishSummary(ctx context.Context, s Summary) error
}

// FetchLimiter throttles upstream requests per key, typically the exchange
// name.
type FetchLimiter interface {
	Wait(ctx context.Context, key string) error
}

// SummaryFeed streams summaries as they are published. The channel closes
// when ctx ends or the feed drops.
type SummaryFeed interface {
	Subscribe(ctx context.Context) (<-chan Summary, error)
}
