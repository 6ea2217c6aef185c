package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the previous-day reconciliation on a cron schedule in UTC.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	logger  *zap.Logger
	timeout time.Duration
}

func NewScheduler(service *Service, schedule string, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		service: service,
		logger:  log,
		timeout: 30 * time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	log.Info("nightly reconciliation job scheduled", zap.String("schedule", schedule))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("reconciliation still running at shutdown")
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.service.ReconcilePreviousDay(ctx); err != nil {
		s.logger.Error("nightly reconciliation failed", zap.Error(err))
	}
}
