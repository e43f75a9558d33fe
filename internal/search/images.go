package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/tools/web_fetch"
)

const (
	DefaultFaviconURL       = "https://www.google.com/s2/favicons?sz=256&domain=%s"
	DefaultImageConcurrency = 8
	maxProbedCandidates     = 8
)

var badImageHosts = []string{"lookaside.instagram.com", "lookaside.fbsbx.com"}

// ImageProber validates one candidate image URL.
type ImageProber interface {
	Valid(ctx context.Context, raw string) bool
}

type ResolverOptions struct {
	Fetcher     web_fetch.WebFetcher
	Prober      ImageProber
	Cache       ImageCache
	Concurrency int
	FaviconURL  string
	// Budget caps the whole chain for one result. Past it the favicon wins.
	Budget  time.Duration
	Logger  *zap.Logger
	Metrics *Metrics
}

// Resolver fills in a usable image for every result.
type Resolver struct {
	fetcher     web_fetch.WebFetcher
	prober      ImageProber
	cache       ImageCache
	concurrency int
	faviconURL  string
	budget      time.Duration
	logger      *zap.Logger
	metrics     *Metrics
}

func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		fetcher:     opts.Fetcher,
		prober:      opts.Prober,
		cache:       opts.Cache,
		concurrency: opts.Concurrency,
		faviconURL:  opts.FaviconURL,
		budget:      opts.Budget,
		logger:      opts.Logger,
		metrics:     orNop(opts.Metrics),
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultImageConcurrency
	}
	if r.faviconURL == "" {
		r.faviconURL = DefaultFaviconURL
	}
	if r.budget <= 0 {
		r.budget = 3 * time.Second
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// NeedsImage reports whether a provider image is missing or unusable.
func NeedsImage(image string) bool {
	image = strings.TrimSpace(image)
	if image == "" {
		return true
	}
	for _, h := range badImageHosts {
		if strings.Contains(image, h) {
			return true
		}
	}
	return false
}

// Favicon is the last-resort image for a result link.
func (r *Resolver) Favicon(link string) string {
	host := ""
	if u, err := url.Parse(link); err == nil {
		host = u.Hostname()
	}
	return fmt.Sprintf(r.faviconURL, url.QueryEscape(host))
}

// Resolve returns a copy of results where every image is non-empty. Results
// resolve concurrently with bounded parallelism; one slow page does not hold
// up the others beyond its own budget.
func (r *Resolver) Resolve(ctx context.Context, results []models.SearchResult) []models.SearchResult {
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()

	out := make([]models.SearchResult, len(results))
	copy(out, results)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range out {
		if !NeedsImage(string(out[i].Image)) {
			r.metrics.ImageResolutions.WithLabelValues("provider").Inc()
			continue
		}
		i := i
		g.Go(func() error {
			out[i].Image = models.NullString(r.resolveOne(ctx, out[i].Link))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, link string) string {
	if r.cache != nil {
		if img, ok := r.cache.Get(ctx, link); ok {
			r.metrics.ImageResolutions.WithLabelValues("cache").Inc()
			return img
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	if img := r.fromPage(ctx, link); img != "" {
		r.metrics.ImageResolutions.WithLabelValues("page").Inc()
		if r.cache != nil {
			r.cache.Set(context.WithoutCancel(ctx), link, img)
		}
		return img
	}
	r.metrics.ImageResolutions.WithLabelValues("favicon").Inc()
	return r.Favicon(link)
}

func (r *Resolver) fromPage(ctx context.Context, link string) string {
	if r.fetcher == nil || r.prober == nil {
		return ""
	}
	page, err := r.fetcher.Exec(ctx, link)
	if err != nil {
		r.logger.Debug("image page fetch failed", zap.String("link", link), zap.Error(err))
		return ""
	}
	for i, c := range page.Candidates {
		if i >= maxProbedCandidates || ctx.Err() != nil {
			break
		}
		if r.prober.Valid(ctx, c) {
			return c
		}
	}
	return ""
}
