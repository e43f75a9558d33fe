package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/config"
	"github.com/mohammad-safakhou/searchbrief/internal/runtime"
	"github.com/mohammad-safakhou/searchbrief/internal/search"
	"github.com/mohammad-safakhou/searchbrief/models"
	openai_provider "github.com/mohammad-safakhou/searchbrief/provider/openai"
	"github.com/mohammad-safakhou/searchbrief/session"
	"github.com/mohammad-safakhou/searchbrief/session/inmemory"
	"github.com/mohammad-safakhou/searchbrief/tools/web_search"
)

var testSecret = []byte("server-test-secret")

type fakeLLM struct {
	tokens      []string
	streamErr   error
	completion  string
	completeErr error

	mu        sync.Mutex
	completes int
}

func (f *fakeLLM) Stream(ctx context.Context, req openai_provider.Request) (<-chan string, <-chan error) {
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
	f.completes++
	f.mu.Unlock()
	return f.completion, f.completeErr
}

func (f *fakeLLM) completeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completes
}

type fakeProvider struct {
	name  string
	items []models.SearchResult
}

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) Discover(context.Context, string) ([]models.SearchResult, error) {
	return p.items, nil
}

func item(link, source, date string) models.SearchResult {
	return models.SearchResult{
		Title:   "Title " + link,
		Snippet: "Snippet for " + link,
		Link:    link,
		Image:   models.NullString("https://cdn.example.com" + strings.TrimPrefix(link, "https://go.dev") + ".jpg"),
		Source:  source,
		Date:    models.NullString(date),
	}
}

type testServer struct {
	e     *echo.Echo
	store *inmemory.Store
	llm   *fakeLLM
}

func newTestServer(t *testing.T, llm *fakeLLM, items []models.SearchResult, sessions config.SessionsConfig) *testServer {
	t.Helper()
	if sessions.MaxSearches == 0 {
		sessions.MaxSearches = 15
	}
	st := inmemory.NewInMemorySessionStore()
	svc := &search.Service{
		Gateway:    search.NewGateway([]web_search.SearchProvider{fakeProvider{name: "Google", items: items}}, time.Second, nil, nil),
		Summarizer: search.NewSummarizer(llm, "gpt-4o-mini", nil),
		Images:     search.NewResolver(search.ResolverOptions{}),
		Suggester:  search.NewSuggester(llm, "gpt-4o-mini", nil),
		Now:        func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	e := NewEcho(Deps{
		Logger:       zap.NewNop(),
		Service:      svc,
		Sessions:     session.NewManager(st, nil, sessions, nil),
		Store:        st,
		LLM:          llm,
		Model:        "gpt-4o-mini",
		Placeholders: gocache.New(time.Hour, time.Hour),
		Secret:       testSecret,
	})
	return &testServer{e: e, store: st, llm: llm}
}

func bearer(t *testing.T, user string) string {
	t.Helper()
	tok, err := runtime.SignJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (s *testServer) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(echo.HeaderAuthorization, bearer(t, user))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// streamLines splits an NDJSON body into decoded messages.
func streamLines(t *testing.T, body []byte) []models.StreamMessage {
	t.Helper()
	var out []models.StreamMessage
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg models.StreamMessage
		require.NoError(t, json.Unmarshal(line, &msg), "line %q", line)
		out = append(out, msg)
	}
	require.NoError(t, sc.Err())
	return out
}
