package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/config"
	"github.com/mohammad-safakhou/searchbrief/internal/store"
	"github.com/mohammad-safakhou/searchbrief/models"
)

// Store is the persistence contract for sessions. internal/store backs it
// with Postgres and session/inmemory with a map.
type Store interface {
	CreateSession(ctx context.Context, userID string, first models.Search) (models.Session, error)
	GetSession(ctx context.Context, id int64, userID string) (models.Session, error)
	AppendSearch(ctx context.Context, id int64, userID string, expectedVersion int, search models.Search, max int) (models.Session, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	DeleteSession(ctx context.Context, id int64, userID string) error
	DeleteAllSessions(ctx context.Context, userID string) (int64, error)
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Outcome describes what Record did with a search.
type Outcome struct {
	Session      models.Session
	IsNewSession bool
	// LimitReached is set under the reject policy when the target session is
	// full. Nothing was persisted.
	LimitReached bool
}

// LimitMessage is shown to users when a full session rejects a search.
func LimitMessage(max int) string {
	return "This session is full (" + strconv.Itoa(max) + " searches max). Start a new one or upgrade for more!"
}

type Manager struct {
	store   Store
	locker  Locker
	max     int
	onFull  string
	lockTTL time.Duration
	logger  *zap.Logger
}

func NewManager(st Store, locker Locker, cfg config.SessionsConfig, logger *zap.Logger) *Manager {
	if locker == nil {
		locker = NopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: st, locker: locker, max: cfg.MaxSearches, onFull: cfg.OnFull, lockTTL: cfg.LockTTL, logger: logger}
	if m.max <= 0 {
		m.max = 15
	}
	if m.onFull == "" {
		m.onFull = config.OnFullRollover
	}
	if m.lockTTL <= 0 {
		m.lockTTL = 10 * time.Second
	}
	return m
}

func (m *Manager) MaxSearches() int { return m.max }

// Record persists a finished search for userID. Without a usable sessionID a
// new session is started. A full session rolls over to a new one, or under
// the reject policy is reported through LimitReached. A concurrent write is
// retried once from a fresh read; a second conflict starts a new session so
// the search is never dropped.
func (m *Manager) Record(ctx context.Context, userID string, sessionID *int64, search models.Search) (Outcome, error) {
	if sessionID == nil {
		return m.create(ctx, userID, search)
	}

	unlock, err := m.locker.Lock(ctx, "session:lock:"+strconv.FormatInt(*sessionID, 10), m.lockTTL)
	if err != nil {
		m.logger.Warn("session lock unavailable, relying on version check",
			zap.Int64("session_id", *sessionID), zap.Error(err))
	} else {
		defer unlock()
	}

	for attempt := 0; attempt < 2; attempt++ {
		sess, err := m.store.GetSession(ctx, *sessionID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return m.create(ctx, userID, search)
		}
		if err != nil {
			return Outcome{}, err
		}
		if len(sess.Searches) >= m.max {
			if m.onFull == config.OnFullReject {
				return Outcome{Session: sess, LimitReached: true}, nil
			}
			return m.create(ctx, userID, search)
		}

		updated, err := m.store.AppendSearch(ctx, sess.ID, userID, sess.Version, search, m.max)
		if err == nil {
			return Outcome{Session: updated}, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return Outcome{}, err
		}
		m.logger.Info("session append conflict",
			zap.Int64("session_id", sess.ID), zap.Int("attempt", attempt+1))
	}
	return m.create(ctx, userID, search)
}

func (m *Manager) create(ctx context.Context, userID string, search models.Search) (Outcome, error) {
	sess, err := m.store.CreateSession(ctx, userID, search)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Session: sess, IsNewSession: true}, nil
}
