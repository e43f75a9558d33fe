package client

import (
	"sync"

	"github.com/mohammad-safakhou/searchbrief/models"
)

// View is the locally displayed state of one session: its id and the
// searches shown for it. Entries for in-flight queries are optimistic until
// the server's terminal message settles them.
type View struct {
	mu        sync.Mutex
	sessionID *int64
	searches  []models.Search
	inflight  map[string]struct{}
}

func NewView() *View {
	return &View{inflight: map[string]struct{}{}}
}

// SessionID returns the session the view currently shows, or nil.
func (v *View) SessionID() *int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sessionID == nil {
		return nil
	}
	id := *v.sessionID
	return &id
}

// Searches returns a copy of the displayed searches.
func (v *View) Searches() []models.Search {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Search(nil), v.searches...)
}

// Load replaces the view with a persisted session.
func (v *View) Load(s models.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := s.ID
	v.sessionID = &id
	v.searches = append([]models.Search(nil), s.Searches...)
}

// Reset clears the view so the next search starts a new session.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessionID = nil
	v.searches = nil
}

// begin appends an optimistic entry for query. It fails when the same
// query is already in flight.
func (v *View) begin(query string) (*int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, busy := v.inflight[query]; busy {
		return nil, ErrInFlight
	}
	v.inflight[query] = struct{}{}
	v.searches = append(v.searches, models.Search{
		Query:       query,
		Results:     []models.SearchResult{},
		Suggestions: []string{},
	})
	if v.sessionID == nil {
		return nil, nil
	}
	id := *v.sessionID
	return &id, nil
}

// pending finds the optimistic entry for query. Caller holds mu.
func (v *View) pending(query string) int {
	for i := len(v.searches) - 1; i >= 0; i-- {
		if v.searches[i].Query == query {
			return i
		}
	}
	return -1
}

func (v *View) appendToken(query, tok string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.pending(query); i >= 0 {
		v.searches[i].Summary += tok
	}
}

// rollback drops the optimistic entry and releases the query.
func (v *View) rollback(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inflight, query)
	if i := v.pending(query); i >= 0 {
		v.searches = append(v.searches[:i], v.searches[i+1:]...)
	}
}

// settle merges the terminal message into the optimistic entry and
// reconciles the session id. It reports whether the view moved to a
// different session.
func (v *View) settle(query string, final models.StreamMessage, timestamp string) (models.Search, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inflight, query)

	entry := models.Search{Query: query}
	i := v.pending(query)
	if i >= 0 {
		entry = v.searches[i]
	}
	entry.Results = final.SearchResults
	if entry.Results == nil {
		entry.Results = []models.SearchResult{}
	}
	entry.Suggestions = final.Suggestions
	if entry.Suggestions == nil {
		entry.Suggestions = []string{}
	}
	entry.Timestamp = timestamp

	moved := final.SessionID != nil && (v.sessionID == nil || *v.sessionID != *final.SessionID)
	if moved {
		id := *final.SessionID
		v.sessionID = &id
		v.searches = []models.Search{entry}
		return entry, true
	}
	if i >= 0 {
		v.searches[i] = entry
	} else {
		v.searches = append(v.searches, entry)
	}
	return entry, false
}
