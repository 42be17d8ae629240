package secrets

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// StaticStore serves one fixed set of credentials for any name.
type StaticStore struct {
	creds domain.ProxyCredentials
}

// NewStaticStore wraps creds.
func NewStaticStore(creds domain.ProxyCredentials) *StaticStore {
	return &StaticStore{creds: creds}
}

// ProxyCredentials returns the configured credentials, or
// domain.ErrNotFound when no proxy host is configured.
func (s *StaticStore) ProxyCredentials(_ context.Context, name string) (domain.ProxyCredentials, error) {
	if !s.creds.Complete() {
		return domain.ProxyCredentials{}, fmt.Errorf("secrets: static %s: %w", name, domain.ErrNotFound)
	}
	return s.creds, nil
}

var _ domain.SecretStore = (*StaticStore)(nil)
