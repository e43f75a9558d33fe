package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mohammad-safakhou/searchbrief/tools/web_fetch/models"
)

type Fetch struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Client    *http.Client
}

func (f Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return models.Result{}, fmt.Errorf("parse url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.Result{URL: rawURL, Status: 599, FetchMS: elapsedMS(t0)}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Result{URL: rawURL, Status: resp.StatusCode, FetchMS: elapsedMS(t0)}, fmt.Errorf("page status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		return models.Result{URL: rawURL, Status: resp.StatusCode, FetchMS: elapsedMS(t0)}, fmt.Errorf("parse html: %w", err)
	}

	return models.Result{
		URL:        rawURL,
		Status:     resp.StatusCode,
		Candidates: Candidates(doc, base),
		FetchMS:    elapsedMS(t0),
	}, nil
}

// Candidates lists image URLs in priority order: og:image, twitter:image,
// then every img src in document order. Relative URLs resolve against base.
func Candidates(doc *goquery.Document, base *url.URL) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := ref.String()
		if base != nil {
			abs = base.ResolveReference(ref).String()
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}

	doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	doc.Find(`meta[name="twitter:image"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})
	return out
}

func elapsedMS(t0 time.Time) int { return int(time.Since(t0) / time.Millisecond) }
