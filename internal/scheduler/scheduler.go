package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/green-wellness-tracker/internal/logger"
)

const defaultJobTimeout = 30 * time.Second

// Refresher reloads the sensor dataset. sensor.Service satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler periodically warms the sensor cache so page renders rarely wait on
// the upstream API.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	l         *logger.Logger
}

// New creates a new Scheduler. A non-positive interval disables it.
func New(interval time.Duration, refresher Refresher, l *logger.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	timeout := defaultJobTimeout
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		l:         l,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The first
// run happens immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.l.Info("scheduler: refresh interval not set; cache warming disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.l.Info("scheduler: cache warming started", map[string]any{"interval": s.interval.String()})
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.refresher.Refresh(ctx); err != nil {
		s.l.Warning("scheduler: refresh failed", map[string]any{"err": err})
		return
	}
	s.l.Debug("scheduler: refresh completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
