package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/searchbrief/models"
)

var tracer = otel.Tracer("searchbrief/internal/search")

// ErrNoResults means every provider failed or came back empty.
var ErrNoResults = errors.New("no search results")

// Service runs the search pipeline stages around the summary stream.
type Service struct {
	Gateway    *Gateway
	Summarizer *Summarizer
	Images     *Resolver
	Suggester  *Suggester
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Prepare fans out to providers and normalizes the merged results.
func (s *Service) Prepare(ctx context.Context, query string) ([]models.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Prepare")
	defer span.End()

	query = strings.TrimSpace(query)
	batches := s.Gateway.Fetch(ctx, query)
	results := Normalize(batches, s.now())
	span.SetAttributes(attribute.Int("results", len(results)))
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// Enrich resolves images and generates suggestions concurrently. Neither
// stage can fail the search.
func (s *Service) Enrich(ctx context.Context, query string, results []models.SearchResult) ([]models.SearchResult, []string) {
	ctx, span := tracer.Start(ctx, "Service.Enrich")
	defer span.End()

	var (
		g           errgroup.Group
		resolved    = results
		suggestions = []string{}
	)
	if s.Images != nil {
		g.Go(func() error {
			resolved = s.Images.Resolve(ctx, results)
			return nil
		})
	}
	if s.Suggester != nil {
		g.Go(func() error {
			suggestions = s.Suggester.Suggest(ctx, query, results)
			return nil
		})
	}
	_ = g.Wait()
	return resolved, suggestions
}
