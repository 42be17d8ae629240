// Package secrets resolves forward-proxy credentials from AWS Secrets Manager
// or static configuration.
package secrets

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// proxyDocument is the JSON shape of a stored proxy secret. Port may be a
// string or a number.
type proxyDocument struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Host     string          `json:"host"`
	Port     json.RawMessage `json:"port"`
}

// DecodeProxyCredentials parses a proxy secret document.
func DecodeProxyCredentials(raw []byte) (domain.ProxyCredentials, error) {
	var doc proxyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.ProxyCredentials{}, fmt.Errorf("secrets: decode proxy secret: %w", err)
	}

	port := strings.TrimSpace(string(doc.Port))
	if unquoted := strings.Trim(port, `"`); unquoted != port {
		port = unquoted
	}
	if port == "null" {
		port = ""
	}

	creds := domain.ProxyCredentials{
		Username: doc.Username,
		Password: doc.Password,
		Host:     doc.Host,
		Port:     port,
	}
	if !creds.Complete() {
		return domain.ProxyCredentials{}, fmt.Errorf("secrets: proxy secret needs host and port")
	}
	return creds, nil
}
