package brave

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/utils"
)

const DefaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey     string
	Endpoint   string
	MaxResults int
	Client     *http.Client
}

func (s Search) Name() string { return "Brave" }

func (s Search) Discover(ctx context.Context, q string) ([]models.SearchResult, error) {
	// https://api.search.brave.com/app/documentation/web-search
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(utils.Clamp(s.MaxResults, 10, 20)))

	endpoint := utils.FirstNonEmpty(s.Endpoint, DefaultEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", s.ApiKey)

	var raw struct {
		Web struct {
			Results []struct {
				Title     string `json:"title"`
				URL       string `json:"url"`
				Snippet   string `json:"description"`
				PageAge   string `json:"page_age"`
				Thumbnail struct {
					Src string `json:"src"`
				} `json:"thumbnail"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := utils.DoJSON(s.Client, req, &raw); err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		out = append(out, models.SearchResult{
			Title:   r.Title,
			Link:    r.URL,
			Snippet: r.Snippet,
			Image:   models.NullString(r.Thumbnail.Src),
			Source:  s.Name(),
			Date:    models.NullString(r.PageAge),
		})
	}
	return out, nil
}
