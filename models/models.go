package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// NullString is a string that encodes as JSON null when empty.
type NullString string

func (s NullString) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *NullString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = NullString(v)
	return nil
}

// SearchResult is one provider item in canonical form. Link is unique within
// a single search's result set.
type SearchResult struct {
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Link    string     `json:"link"`
	Image   NullString `json:"image"`
	Source  string     `json:"source"`
	Date    NullString `json:"date"`
}

// Search is one user query with its summary, results and follow-ups.
type Search struct {
	Query       string         `json:"query"`
	Summary     string         `json:"summary"`
	Results     []SearchResult `json:"results"`
	Suggestions []string       `json:"suggestions"`
	Timestamp   string         `json:"timestamp"`
}

// NewSearch stamps a search with the current UTC time.
func NewSearch(query, summary string, results []SearchResult, suggestions []string) Search {
	if results == nil {
		results = []SearchResult{}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return Search{
		Query:       query,
		Summary:     summary,
		Results:     results,
		Suggestions: suggestions,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Session is a user-owned, capacity-bounded, append-only log of searches.
type Session struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Searches  []Search  `json:"searches"`
	// Version is the optimistic concurrency token bumped on every write.
	Version int `json:"-"`
}

// TokenMessage carries one streamed summary token.
type TokenMessage struct {
	Token string `json:"token"`
}

// FinalMessage terminates a successful stream.
type FinalMessage struct {
	Final         bool           `json:"final"`
	SearchResults []SearchResult `json:"searchResults"`
	Suggestions   []string       `json:"suggestions"`
	SessionID     *int64         `json:"sessionId"`
	NewSession    bool           `json:"newSession"`
	LimitReached  bool           `json:"limitReached"`
	Message       string         `json:"message,omitempty"`
}

// ErrorMessage terminates a stream that failed after it started.
type ErrorMessage struct {
	Error string `json:"error"`
}

// StreamMessage is the decoding side of the NDJSON union. Exactly one of
// Token, Final or Error is meaningful per line.
type StreamMessage struct {
	Token         *string        `json:"token,omitempty"`
	Final         bool           `json:"final,omitempty"`
	SearchResults []SearchResult `json:"searchResults,omitempty"`
	Suggestions   []string       `json:"suggestions,omitempty"`
	SessionID     *int64         `json:"sessionId,omitempty"`
	NewSession    bool           `json:"newSession,omitempty"`
	LimitReached  bool           `json:"limitReached,omitempty"`
	Message       string         `json:"message,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// EmptyResponse is the soft-empty body returned when no provider had results.
type EmptyResponse struct {
	Message       string         `json:"message"`
	SearchResults []SearchResult `json:"searchResults"`
	Suggestions   []string       `json:"suggestions"`
}

// NoResultsMessage is shown when every provider came back empty.
const NoResultsMessage = "Hmm, we couldn’t find anything with that. Try a different search."
