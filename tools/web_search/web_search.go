package web_search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/config"
	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/tools/web_search/bing"
	"github.com/mohammad-safakhou/searchbrief/tools/web_search/brave"
	"github.com/mohammad-safakhou/searchbrief/tools/web_search/google"
	"github.com/mohammad-safakhou/searchbrief/tools/web_search/serper"
)

// SearchProvider is one external search provider mapped onto SearchResult.
type SearchProvider interface {
	Name() string
	Discover(ctx context.Context, q string) ([]models.SearchResult, error)
}

type Provider string

const (
	GoogleProvider Provider = "google"
	BingProvider   Provider = "bing"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrMissingCredentials  = errors.New("provider credentials missing")
	ErrNoProviders         = errors.New("no search providers configured")

	// ErrUnavailable marks a provider call that timed out or failed. It never
	// fails the whole search.
	ErrUnavailable = errors.New("search provider unavailable")
)

// NewSearchProvider builds a provider from its config block. Providers without
// the credentials they need return ErrMissingCredentials.
func NewSearchProvider(provider Provider, cfg config.SearchProviderConfig, client *http.Client) (SearchProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	switch provider {
	case GoogleProvider:
		if strings.TrimSpace(cfg.CX) == "" {
			return nil, ErrMissingCredentials
		}
		return google.Search{ApiKey: cfg.APIKey, CX: cfg.CX, Endpoint: cfg.Endpoint, MaxResults: cfg.MaxResults, Client: client}, nil
	case BingProvider:
		return bing.Search{ApiKey: cfg.APIKey, Endpoint: cfg.Endpoint, MaxResults: cfg.MaxResults, Client: client}, nil
	case SerperProvider:
		return serper.Search{ApiKey: cfg.APIKey, Endpoint: cfg.Endpoint, MaxResults: cfg.MaxResults, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: cfg.APIKey, Endpoint: cfg.Endpoint, MaxResults: cfg.MaxResults, Client: client}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// FromConfig builds every configured provider in priority order, skipping the
// ones without credentials. It fails only when nothing usable remains.
func FromConfig(cfg config.SearchConfig, client *http.Client, logger *zap.Logger) ([]SearchProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var out []SearchProvider
	for _, name := range cfg.Priority {
		name = strings.ToLower(strings.TrimSpace(name))
		pc, ok := cfg.Providers[name]
		if !ok {
			logger.Info("search provider not configured, skipping", zap.String("provider", name))
			continue
		}
		ws, err := NewSearchProvider(Provider(name), pc, client)
		if err != nil {
			if errors.Is(err, ErrUnsupportedProvider) {
				return nil, fmt.Errorf("%w: %s", err, name)
			}
			logger.Warn("search provider skipped", zap.String("provider", name), zap.Error(err))
			continue
		}
		out = append(out, ws)
	}
	if len(out) == 0 {
		return nil, ErrNoProviders
	}
	return out, nil
}
