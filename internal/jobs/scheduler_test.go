package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSweeper struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (r *recordingSweeper) SweepPending(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return 2, nil
}

func (r *recordingSweeper) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

func TestScheduler_RunOnceUsesTTL(t *testing.T) {
	sweeper := &recordingSweeper{}
	s := NewScheduler(sweeper, "", 10*time.Minute, nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	removed, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
	require.Len(t, sweeper.cutoffs, 1)
	assert.Equal(t, fixed.Add(-10*time.Minute), sweeper.cutoffs[0])
}

func TestScheduler_StartRunsOnSchedule(t *testing.T) {
	sweeper := &recordingSweeper{}
	s := NewScheduler(sweeper, "@every 1s", time.Minute, nil)
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return sweeper.count() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&recordingSweeper{}, "not a schedule", time.Minute, nil)
	assert.Error(t, s.Start())
}

func TestScheduler_NilSweeperIsNoop(t *testing.T) {
	s := NewScheduler(nil, "", 0, nil)
	assert.NoError(t, s.Start())
	s.Stop(context.Background())
}
