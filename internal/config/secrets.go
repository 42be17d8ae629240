package config

import (
	"net/url"
	"regexp"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Credentials are
// replaced with "***"; a URL-form DSN keeps its host and database so the
// target stays visible.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Proxy.Username)
	redact(&out.Proxy.Password)
	out.Postgres.DSN = redactDSN(out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	if cfg.Exchanges != nil {
		out.Exchanges = make([]ExchangeConfig, len(cfg.Exchanges))
		for i, ex := range cfg.Exchanges {
			ex.Symbols = append([]string(nil), ex.Symbols...)
			out.Exchanges[i] = ex
		}
	}
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

var (
	// kvPassword matches password=... in a keyword/value DSN.
	kvPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)
	kvPair     = regexp.MustCompile(`\w+\s*=`)
)

// redactDSN hides the password of a postgres:// URL or keyword/value DSN.
// Anything it cannot parse is redacted whole.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
		q := u.Query()
		if q.Has("password") {
			q.Set("password", redacted)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	if kvPassword.MatchString(dsn) {
		return kvPassword.ReplaceAllString(dsn, "${1}"+redacted)
	}
	if kvPair.MatchString(dsn) {
		return dsn
	}
	return redacted
}
