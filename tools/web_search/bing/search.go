package bing

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/utils"
)

const DefaultEndpoint = "https://api.bing.microsoft.com/v7.0/search"

type Search struct {
	ApiKey     string
	Endpoint   string
	MaxResults int
	Client     *http.Client
}

func (s Search) Name() string { return "Bing" }

func (s Search) Discover(ctx context.Context, q string) ([]models.SearchResult, error) {
	// https://learn.microsoft.com/bing/search-apis/bing-web-search/reference/endpoints
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(utils.Clamp(s.MaxResults, 3, 50)))
	params.Set("responseFilter", "Webpages")

	endpoint := utils.FirstNonEmpty(s.Endpoint, DefaultEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.ApiKey)

	var raw struct {
		WebPages struct {
			Value []struct {
				Name            string `json:"name"`
				URL             string `json:"url"`
				Snippet         string `json:"snippet"`
				DateLastCrawled string `json:"dateLastCrawled"`
				Image           struct {
					Thumbnail struct {
						ContentURL string `json:"contentUrl"`
					} `json:"thumbnail"`
				} `json:"image"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := utils.DoJSON(s.Client, req, &raw); err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(raw.WebPages.Value))
	for _, it := range raw.WebPages.Value {
		out = append(out, models.SearchResult{
			Title:   it.Name,
			Link:    it.URL,
			Snippet: it.Snippet,
			Image:   models.NullString(it.Image.Thumbnail.ContentURL),
			Source:  s.Name(),
			Date:    models.NullString(it.DateLastCrawled),
		})
	}
	return out, nil
}
