package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

type publishSubscriber interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// SummaryPublisher implements domain.SnapshotPublisher by publishing each
// summary as JSON on a Pub/Sub channel.
type SummaryPublisher struct {
	rdb     publishSubscriber
	channel string
}

// NewSummaryPublisher creates a publisher on channel.
func NewSummaryPublisher(c *Client, channel string) *SummaryPublisher {
	return &SummaryPublisher{rdb: c.Underlying(), channel: channel}
}

// PublishSummary sends s. Having no subscribers is not an error.
func (p *SummaryPublisher) PublishSummary(ctx context.Context, s domain.Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal summary %s: %w", s.TransactionID, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe streams decoded summaries until ctx is cancelled, then closes the
// returned channel. Undecodable payloads are dropped.
func (p *SummaryPublisher) Subscribe(ctx context.Context) (<-chan domain.Summary, error) {
	pubsub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", p.channel, err)
	}
	return decodeSummaries(ctx, pubsub.Channel(), pubsub.Close), nil
}

// decodeSummaries forwards msgs as summaries and calls closeFn once ctx ends
// or msgs closes.
func decodeSummaries(ctx context.Context, msgs <-chan *redis.Message, closeFn func() error) <-chan domain.Summary {
	out := make(chan domain.Summary, 64)
	go func() {
		defer close(out)
		defer func() { _ = closeFn() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var s domain.Summary
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					continue
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

var (
	_ domain.SnapshotPublisher = (*SummaryPublisher)(nil)
	_ domain.SummaryFeed       = (*SummaryPublisher)(nil)
)
