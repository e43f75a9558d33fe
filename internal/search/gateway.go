package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/tools/web_search"
)

const DefaultProviderTimeout = 2 * time.Second

// Gateway fans a query out to every configured provider.
type Gateway struct {
	providers []web_search.SearchProvider
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *Metrics
}

func NewGateway(providers []web_search.SearchProvider, timeout time.Duration, logger *zap.Logger, metrics *Metrics) *Gateway {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{providers: providers, timeout: timeout, logger: logger, metrics: orNop(metrics)}
}

// Fetch returns one batch per provider in priority order. A provider that
// fails or times out contributes an empty batch; Fetch itself never fails
// because of a provider.
func (g *Gateway) Fetch(ctx context.Context, query string) [][]models.SearchResult {
	batches := make([][]models.SearchResult, len(g.providers))
	var wg sync.WaitGroup
	for i, p := range g.providers {
		wg.Add(1)
		go func(i int, p web_search.SearchProvider) {
			defer wg.Done()
			items, err := g.call(ctx, p, query)
			if err != nil {
				g.logger.Warn("search provider unavailable",
					zap.String("provider", p.Name()),
					zap.Error(err))
				return
			}
			batches[i] = items
		}(i, p)
	}
	wg.Wait()
	return batches
}

func (g *Gateway) call(ctx context.Context, p web_search.SearchProvider, query string) ([]models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	items, err := p.Discover(ctx, query)
	g.metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case len(items) == 0:
		outcome = "empty"
	}
	g.metrics.ProviderCalls.WithLabelValues(p.Name(), outcome).Inc()

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", web_search.ErrUnavailable, p.Name(), err)
	}
	return items, nil
}
