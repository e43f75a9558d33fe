package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/searchbrief/session"
)

type recordingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	during  func()
}

func (p *recordingPruner) DeleteSessionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	if p.during != nil {
		p.during()
	}
	return p.n, nil
}

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-25 * time.Hour)

	assert.True(t, isDue("@daily", nil, now))
	assert.False(t, isDue("@daily", &hourAgo, now))
	assert.True(t, isDue("@daily", &dayAgo, now))
	assert.True(t, isDue("@hourly", &hourAgo, now))
	assert.True(t, isDue("*/30 * * * *", &hourAgo, now))
	recent := now.Add(-time.Minute)
	assert.False(t, isDue("0 3 * * *", &recent, now))
	assert.False(t, isDue("not a cron", &hourAgo, now))
}

func TestRetentionSweeperTick(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &recordingPruner{n: 3}
	s := &RetentionSweeper{Store: p, Cron: "@daily", MaxAge: 30 * 24 * time.Hour, Now: func() time.Time { return now }}

	assert.Equal(t, int64(3), s.tick(context.Background()))
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, now.Add(-30*24*time.Hour), p.cutoffs[0])

	// not due again within the day
	assert.Zero(t, s.tick(context.Background()))
	assert.Len(t, p.cutoffs, 1)
}

func TestRetentionSweeperSkipsWhenLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	require.NoError(t, mr.Set(retentionLockKey, "other-replica"))

	p := &recordingPruner{}
	s := &RetentionSweeper{Store: p, Locker: session.NewRedisLocker(rdb, 10*time.Millisecond), Cron: "@daily", MaxAge: time.Hour}
	s.tick(context.Background())
	assert.Empty(t, p.cutoffs)

	mr.Del(retentionLockKey)
	s.tick(context.Background())
	assert.Len(t, p.cutoffs, 1)
	assert.False(t, mr.Exists(retentionLockKey))
}

func TestRetentionSweeperKeepsLockTakenOverMidSweep(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	// our lock expires during the sweep and another replica takes it
	p := &recordingPruner{during: func() {
		mr.Del(retentionLockKey)
		_ = mr.Set(retentionLockKey, "other-replica")
	}}
	s := &RetentionSweeper{Store: p, Locker: session.NewRedisLocker(rdb, 10*time.Millisecond), Cron: "@daily", MaxAge: time.Hour}
	s.tick(context.Background())

	require.Len(t, p.cutoffs, 1)
	got, err := mr.Get(retentionLockKey)
	require.NoError(t, err)
	assert.Equal(t, "other-replica", got)
}
