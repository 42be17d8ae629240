package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

type hashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// SecretStore implements domain.SecretStore over Redis hashes keyed
// secret:{name} with username, password, host and port fields.
type SecretStore struct {
	rdb hashGetter
}

// NewSecretStore creates a SecretStore backed by c.
func NewSecretStore(c *Client) *SecretStore {
	return &SecretStore{rdb: c.Underlying()}
}

func secretKey(name string) string {
	return "secret:" + name
}

// ProxyCredentials reads the hash for name. A missing or empty hash is
// domain.ErrNotFound.
func (s *SecretStore) ProxyCredentials(ctx context.Context, name string) (domain.ProxyCredentials, error) {
	fields, err := s.rdb.HGetAll(ctx, secretKey(name)).Result()
	if err != nil {
		return domain.ProxyCredentials{}, fmt.Errorf("redis: get secret %s: %w", name, err)
	}
	if len(fields) == 0 {
		return domain.ProxyCredentials{}, fmt.Errorf("redis: get secret %s: %w", name, domain.ErrNotFound)
	}

	creds := domain.ProxyCredentials{
		Username: fields["username"],
		Password: fields["password"],
		Host:     fields["host"],
		Port:     fields["port"],
	}
	if !creds.Complete() {
		return domain.ProxyCredentials{}, fmt.Errorf("redis: secret %s: host and port are required", name)
	}
	return creds, nil
}

var _ domain.SecretStore = (*SecretStore)(nil)
