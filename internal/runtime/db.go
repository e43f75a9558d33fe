package runtime

import (
	"fmt"
	"net"
	"net/url"

	"github.com/mohammad-safakhou/searchbrief/config"
)

// BuildPostgresDSN constructs a DSN from the application configuration.
// An explicit url wins over the discrete host settings.
func BuildPostgresDSN(cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("config is nil")
	}
	p := cfg.Storage.Postgres
	if p.URL != "" {
		return p.URL, nil
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(p.Host, port),
		Path:     "/" + p.DBName,
		RawQuery: url.Values{"sslmode": {ssl}}.Encode(),
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	if p.Timeout > 0 {
		q := u.Query()
		q.Set("connect_timeout", fmt.Sprint(int(p.Timeout.Seconds())))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// PostgresConfigured reports whether enough settings exist to build a DSN.
func PostgresConfigured(cfg *config.Config) bool {
	return cfg != nil && cfg.Storage.Postgres.Validate() == nil
}
