package server

import (
	"context"
	"errors"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/searchbrief/session"
)

const (
	retentionLockKey = "sched:lock:retention"
	retentionLockTTL = 2 * time.Minute
)

// SessionPruner deletes sessions last touched before a cutoff.
type SessionPruner interface {
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweeper periodically deletes sessions older than MaxAge on the
// Cron schedule. With a redis Locker only one replica sweeps at a time.
type RetentionSweeper struct {
	Store    SessionPruner
	Locker   session.Locker
	Cron     string
	MaxAge   time.Duration
	Interval time.Duration
	Logger   *zap.Logger
	Now      func() time.Time

	last *time.Time
}

func (s *RetentionSweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start runs the sweeper until ctx is cancelled.
func (s *RetentionSweeper) Start(ctx context.Context) {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// tick sweeps when the schedule is due and reports how many sessions went.
func (s *RetentionSweeper) tick(ctx context.Context) int64 {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	now := s.now()
	if !isDue(s.Cron, s.last, now) {
		return 0
	}

	// distributed lock to avoid duplicate sweeps
	locker := s.Locker
	if locker == nil {
		locker = session.NopLocker{}
	}
	unlock, err := locker.Lock(ctx, retentionLockKey, retentionLockTTL)
	if err != nil {
		if !errors.Is(err, session.ErrLockHeld) {
			s.Logger.Warn("retention lock failed", zap.Error(err))
		}
		return 0
	}
	defer unlock()

	cutoff := now.Add(-s.MaxAge)
	n, err := s.Store.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("retention sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0
	}
	s.last = &now
	s.Logger.Info("retention sweep", zap.Time("cutoff", cutoff), zap.Int64("deleted", n))
	return n
}

// isDue determines if a job with cronSpec should run at now given its last run.
// Supports "@daily", "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	switch cronSpec {
	case "@daily", "":
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			return now.Sub(*last) >= 24*time.Hour
		}
		next := expr.Next(*last)
		return !next.IsZero() && !next.After(now)
	}
}
