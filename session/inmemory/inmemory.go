package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/searchbrief/internal/store"
	"github.com/mohammad-safakhou/searchbrief/models"
)

// Store keeps sessions in process memory with the same ownership, version
// and capacity rules as the Postgres store. Used when no database is
// configured and in tests.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]models.Session
	now      func() time.Time
}

func NewInMemorySessionStore() *Store {
	return &Store{sessions: make(map[int64]models.Session), now: time.Now}
}

func clone(s models.Session) models.Session {
	s.Searches = append([]models.Search(nil), s.Searches...)
	return s
}

func (st *Store) CreateSession(_ context.Context, userID string, first models.Search) (models.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextID++
	now := st.now().UTC()
	sess := models.Session{
		ID:        st.nextID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Searches:  []models.Search{first},
	}
	st.sessions[sess.ID] = sess
	return clone(sess), nil
}

func (st *Store) GetSession(_ context.Context, id int64, userID string) (models.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok || sess.UserID != userID {
		return models.Session{}, store.ErrNotFound
	}
	return clone(sess), nil
}

func (st *Store) AppendSearch(_ context.Context, id int64, userID string, expectedVersion int, search models.Search, max int) (models.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok || sess.UserID != userID || sess.Version != expectedVersion || len(sess.Searches) >= max {
		return models.Session{}, store.ErrConflict
	}
	sess = clone(sess)
	sess.Searches = append(sess.Searches, search)
	sess.Version++
	sess.UpdatedAt = st.now().UTC()
	st.sessions[id] = sess
	return clone(sess), nil
}

func (st *Store) ListSessions(_ context.Context, userID string) ([]models.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := []models.Session{}
	for _, s := range st.sessions {
		if s.UserID == userID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (st *Store) DeleteSession(_ context.Context, id int64, userID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok || sess.UserID != userID {
		return store.ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *Store) DeleteAllSessions(_ context.Context, userID string) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var n int64
	for id, s := range st.sessions {
		if s.UserID == userID {
			delete(st.sessions, id)
			n++
		}
	}
	return n, nil
}

func (st *Store) DeleteSessionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var n int64
	for id, s := range st.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n, nil
}
