package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"aeye-server-go/internal/utils"
)

const sweepTimeout = 30 * time.Second

// PendingSweeper deletes report records that never left the pending state.
type PendingSweeper interface {
	SweepPending(ctx context.Context, cutoff time.Time) (int64, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  PendingSweeper
	schedule string
	ttl      time.Duration
	log      *utils.Logger
	now      func() time.Time
}

func NewScheduler(sweeper PendingSweeper, schedule string, ttl time.Duration, log *utils.Logger) *Scheduler {
	if schedule == "" {
		schedule = "@every 5m"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Scheduler{
		cron:     cron.New(),
		sweeper:  sweeper,
		schedule: schedule,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.sweeper == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}

	s.cron.Start()
	s.log.InfoTag("Jobs", "pending report sweep scheduled (%s, ttl=%s)", s.schedule, s.ttl)
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.WarnTag("Jobs", "scheduler stop interrupted: %v", ctx.Err())
	}
}

// RunOnce performs a single sweep and returns how many records were removed.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	return s.sweeper.SweepPending(ctx, s.now().Add(-s.ttl))
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.RunOnce(ctx)
	if err != nil {
		s.log.ErrorTag("Jobs", "pending report sweep failed: %v", err)
		return
	}
	if removed > 0 {
		s.log.InfoTag("Jobs", "removed %d stale pending reports", removed)
	}
}
