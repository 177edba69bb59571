package sanctions

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/yigicoin/platform/internal/app/metrics"
	"github.com/yigicoin/platform/pkg/logger"
)

// defaultSweepSchedule runs the expiry sweep every ten minutes.
const defaultSweepSchedule = "@every 10m"

// Sweeper periodically expires overdue sanctions. It implements the system
// service lifecycle.
type Sweeper struct {
	svc      *Service
	schedule string
	log      *logger.Logger
	cron     *cron.Cron
}

// NewSweeper builds a sweeper around the sanction service. An empty schedule
// uses the default.
func NewSweeper(svc *Service, schedule string, log *logger.Logger) *Sweeper {
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	if log == nil {
		log = logger.NewDefault("sanction-sweeper")
	}
	return &Sweeper{svc: svc, schedule: schedule, log: log}
}

// Name identifies the sweeper to the system manager.
func (s *Sweeper) Name() string { return "sanction-sweeper" }

// Start schedules the sweep and runs one immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()

	s.sweep(ctx)
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.svc.SweepExpired(ctx)
	metrics.RecordSanctionSweep(expired, err == nil)
	if err != nil {
		s.log.WithError(err).Warn("sanction sweep failed")
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
