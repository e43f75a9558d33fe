package server

import (
	"time"

	"github.com/mohammad-safakhou/searchbrief/models"
)

type messageResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted,omitempty"`
}

type placeholdersResponse struct {
	Placeholders []string `json:"placeholders"`
}

type sessionsResponse struct {
	Sessions []sessionView `json:"sessions"`
}

// resultView is a stored result as listed to clients: a missing image is
// an empty string rather than null.
type resultView struct {
	Title   string            `json:"title"`
	Snippet string            `json:"snippet"`
	Link    string            `json:"link"`
	Image   string            `json:"image"`
	Source  string            `json:"source"`
	Date    models.NullString `json:"date"`
}

type searchView struct {
	Query       string       `json:"query"`
	Summary     string       `json:"summary"`
	Results     []resultView `json:"results"`
	Suggestions []string     `json:"suggestions"`
	Timestamp   string       `json:"timestamp"`
}

type sessionView struct {
	ID        int64        `json:"id"`
	UserID    string       `json:"user_id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Searches  []searchView `json:"searches"`
}

func newSessionView(s models.Session) sessionView {
	v := sessionView{
		ID:        s.ID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Searches:  make([]searchView, 0, len(s.Searches)),
	}
	for _, sr := range s.Searches {
		sv := searchView{
			Query:       sr.Query,
			Summary:     sr.Summary,
			Results:     make([]resultView, 0, len(sr.Results)),
			Suggestions: sr.Suggestions,
			Timestamp:   sr.Timestamp,
		}
		if sv.Suggestions == nil {
			sv.Suggestions = []string{}
		}
		for _, r := range sr.Results {
			sv.Results = append(sv.Results, resultView{
				Title:   r.Title,
				Snippet: r.Snippet,
				Link:    r.Link,
				Image:   string(r.Image),
				Source:  r.Source,
				Date:    r.Date,
			})
		}
		v.Searches = append(v.Searches, sv)
	}
	return v
}
