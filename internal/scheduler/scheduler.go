package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const syncTimeout = 2 * time.Minute

// Scheduler runs the BOM sync on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	syncer *Syncer
	logger *zap.Logger
}

// New registers syncer on schedule, a standard five-field cron expression.
func New(schedule string, syncer *Syncer, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron:   cron.New(),
		syncer: syncer,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.runSync); err != nil {
		return nil, fmt.Errorf("schedule bom sync %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sync to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out", zap.Error(ctx.Err()))
	}
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if _, err := s.syncer.Run(ctx); err != nil {
		s.logger.Error("bom sync failed", zap.Error(err))
	}
}
