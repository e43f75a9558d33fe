package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/searchbrief/models"
)

var (
	// ErrNotFound is returned when a session does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when a conditional append matched no row: the
	// session changed since it was read or is already full.
	ErrConflict = errors.New("session changed concurrently")
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

const sessionColumns = `id, user_id, created_at, updated_at, searches, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var (
		sess models.Session
		raw  []byte
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt, &raw, &sess.Version); err != nil {
		return models.Session{}, err
	}
	sess.Searches = []models.Search{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sess.Searches); err != nil {
			return models.Session{}, fmt.Errorf("decode searches of session %d: %w", sess.ID, err)
		}
	}
	return sess, nil
}

// CreateSession starts a new session holding exactly the given search.
func (s *Store) CreateSession(ctx context.Context, userID string, first models.Search) (models.Session, error) {
	payload, err := json.Marshal([]models.Search{first})
	if err != nil {
		return models.Session{}, err
	}
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO search_sessions (user_id, searches) VALUES ($1, $2::jsonb) RETURNING `+sessionColumns,
		userID, payload)
	sess, err := scanSession(row)
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetSession loads one session scoped to its owner.
func (s *Store) GetSession(ctx context.Context, id int64, userID string) (models.Session, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM search_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// AppendSearch appends to a session only if it is still at expectedVersion
// and holds fewer than max searches. Otherwise it returns ErrConflict and the
// row is untouched.
func (s *Store) AppendSearch(ctx context.Context, id int64, userID string, expectedVersion int, search models.Search, max int) (models.Session, error) {
	payload, err := json.Marshal([]models.Search{search})
	if err != nil {
		return models.Session{}, err
	}
	row := s.DB.QueryRowContext(ctx, `UPDATE search_sessions
		SET searches = searches || $1::jsonb, version = version + 1, updated_at = NOW()
		WHERE id=$2 AND user_id=$3 AND version=$4 AND jsonb_array_length(searches) < $5
		RETURNING `+sessionColumns,
		payload, id, userID, expectedVersion, max)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrConflict
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("append search: %w", err)
	}
	return sess, nil
}

// ListSessions returns the user's sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM search_sessions WHERE user_id=$1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes one session owned by userID.
func (s *Store) DeleteSession(ctx context.Context, id int64, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM search_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllSessions removes every session owned by userID.
func (s *Store) DeleteAllSessions(ctx context.Context, userID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM search_sessions WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSessionsBefore prunes sessions not updated since cutoff.
func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, errors.New("cutoff required")
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM search_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
