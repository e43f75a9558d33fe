package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/mohammad-safakhou/searchbrief/models"
	"github.com/mohammad-safakhou/searchbrief/utils"
)

const DefaultEndpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey     string
	Endpoint   string
	MaxResults int
	Client     *http.Client
}

func (s Search) Name() string { return "Serper" }

func (s Search) Discover(ctx context.Context, q string) ([]models.SearchResult, error) {
	// https://serper.dev/ docs
	body, err := json.Marshal(map[string]any{"q": q, "num": utils.Clamp(s.MaxResults, 10, 100)})
	if err != nil {
		return nil, err
	}
	endpoint := utils.FirstNonEmpty(s.Endpoint, DefaultEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	var raw struct {
		Organic []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Date     string `json:"date"`
			ImageURL string `json:"imageUrl"`
		} `json:"organic"`
	}
	if err := utils.DoJSON(s.Client, req, &raw); err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(raw.Organic))
	for _, it := range raw.Organic {
		out = append(out, models.SearchResult{
			Title:   it.Title,
			Link:    it.Link,
			Snippet: it.Snippet,
			Image:   models.NullString(it.ImageURL),
			Source:  s.Name(),
			Date:    models.NullString(it.Date),
		})
	}
	return out, nil
}
