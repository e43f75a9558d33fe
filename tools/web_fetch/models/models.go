package models

// Result is what a page fetch yields for image resolution: the candidate
// image URLs in priority order, already absolute.
type Result struct {
	URL        string   `json:"url"`
	Status     int      `json:"status"`
	Candidates []string `json:"candidates"`
	FetchMS    int      `json:"fetch_ms"`
}
