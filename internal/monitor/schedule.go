package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Schedule is a job run immediately and then every Interval.
type Schedule struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs schedules until stopped.
type Scheduler struct {
	schedules []*Schedule
	logger    *slog.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger.With("component", "scheduler")}
}

// Add registers a schedule. Schedules added after Start are not run.
func (s *Scheduler) Add(sched *Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, sched)
	s.logger.Info("schedule added", "name", sched.Name, "interval", sched.Interval)
}

// Start runs every schedule in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, s.cancel = context.WithCancel(ctx)

	for _, sched := range s.schedules {
		s.wg.Add(1)
		go func(sched *Schedule) {
			defer s.wg.Done()
			s.loop(ctx, sched)
		}(sched)
	}
}

func (s *Scheduler) loop(ctx context.Context, sched *Schedule) {
	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	for {
		s.logger.Info("running schedule", "name", sched.Name)
		if err := sched.Run(ctx); err != nil {
			s.logger.Error("scheduled run failed", "name", sched.Name, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels all schedules and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
