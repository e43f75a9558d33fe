package web_fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/searchbrief/tools/web_fetch/page"
	"github.com/mohammad-safakhou/searchbrief/tools/web_fetch/models"
)

const (
	DefaultTimeout  = time.Second
	MaxBytesDefault = 2 << 20
	UserAgent       = "Mozilla/5.0"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	GoqueryFetcherType FetcherType = "goquery"
)

func NewWebFetcher(fetcherType FetcherType, client *http.Client, timeout time.Duration, maxBytes int64) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = MaxBytesDefault
	}
	if client == nil {
		client = http.DefaultClient
	}

	switch fetcherType {
	case GoqueryFetcherType:
		return &page.Fetch{Timeout: timeout, MaxBytes: maxBytes, UserAgent: UserAgent, Client: client}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
