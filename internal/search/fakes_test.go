package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mohammad-safakhou/searchbrief/models"
	openai_provider "github.com/mohammad-safakhou/searchbrief/provider/openai"
	fetchmodels "github.com/mohammad-safakhou/searchbrief/tools/web_fetch/models"
)

type fakeLLM struct {
	tokens      []string
	streamErr   error
	completion  string
	completeErr error

	mu       sync.Mutex
	requests []openai_provider.Request
}

func (f *fakeLLM) Stream(ctx context.Context, req openai_provider.Request) (<-chan string, <-chan error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	tokens := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(tokens)
		for _, t := range f.tokens {
			select {
			case tokens <- t:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if f.streamErr != nil {
			errs <- f.streamErr
		}
	}()
	return tokens, errs
}

func (f *fakeLLM) Complete(ctx context.Context, req openai_provider.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.completion, f.completeErr
}

type fakeProvider struct {
	name  string
	items []models.SearchResult
	err   error
	delay time.Duration
}

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) Discover(ctx context.Context, q string) ([]models.SearchResult, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.items, p.err
}

type fakeFetcher struct {
	pages map[string][]string
	delay time.Duration
}

func (f fakeFetcher) Exec(ctx context.Context, url string) (fetchmodels.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return fetchmodels.Result{}, ctx.Err()
		}
	}
	c, ok := f.pages[url]
	if !ok {
		return fetchmodels.Result{URL: url, Status: 599}, errors.New("unreachable")
	}
	return fetchmodels.Result{URL: url, Status: 200, Candidates: c}, nil
}

type fakeProber map[string]bool

func (p fakeProber) Valid(_ context.Context, raw string) bool { return p[raw] }

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *memCache) Get(_ context.Context, link string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[link]
	return v, ok
}

func (c *memCache) Set(_ context.Context, link, image string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[link] = image
}
