package web_fetch

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	imageExt = regexp.MustCompile(`(?i)\.(jpeg|jpg|png|webp|gif|svg)$`)

	trackingHosts = []string{"facebook.com/tr", "google-analytics", "lookaside.fbsbx.com"}
)

// Prober checks that a candidate URL points at a reachable image without
// downloading it.
type Prober struct {
	Timeout time.Duration
	Client  *http.Client
}

// Looks reports whether raw passes the static checks: not a tracking pixel
// and an image extension on the path.
func Looks(raw string) bool {
	for _, h := range trackingHosts {
		if strings.Contains(raw, h) {
			return false
		}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return imageExt.MatchString(u.Path)
}

// Valid runs the static checks and then a ranged GET for the first 100 bytes.
func (p Prober) Valid(ctx context.Context, raw string) bool {
	if !Looks(raw) {
		return false
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Range", "bytes=0-99")
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
