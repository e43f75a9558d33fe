package google

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/utils"
)

const DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

type Search struct {
	ApiKey     string
	CX         string
	Endpoint   string
	MaxResults int
	Client     *http.Client
}

func (s Search) Name() string { return "Google" }

func (s Search) Discover(ctx context.Context, q string) ([]models.SearchResult, error) {
	// https://developers.google.com/custom-search/v1/reference/rest/v1/cse/list
	params := url.Values{}
	params.Set("key", s.ApiKey)
	params.Set("cx", s.CX)
	params.Set("q", q)
	params.Set("sort", "date")
	params.Set("num", strconv.Itoa(utils.Clamp(s.MaxResults, 5, 10)))
	params.Set("fields", "items(title,link,snippet,pagemap(cse_image),pagemap(metatags))")

	endpoint := utils.FirstNonEmpty(s.Endpoint, DefaultEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Pagemap struct {
				CSEImage []struct {
					Src string `json:"src"`
				} `json:"cse_image"`
				Metatags []map[string]string `json:"metatags"`
			} `json:"pagemap"`
		} `json:"items"`
	}
	if err := utils.DoJSON(s.Client, req, &raw); err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(raw.Items))
	for _, it := range raw.Items {
		r := models.SearchResult{Title: it.Title, Link: it.Link, Snippet: it.Snippet, Source: s.Name()}
		if len(it.Pagemap.CSEImage) > 0 {
			r.Image = models.NullString(it.Pagemap.CSEImage[0].Src)
		}
		if len(it.Pagemap.Metatags) > 0 {
			r.Date = models.NullString(it.Pagemap.Metatags[0]["article:published_time"])
		}
		out = append(out, r)
	}
	return out, nil
}
