// Package scheduler periodically refreshes the stages of every project.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
)

// Refresher is the registry side of a periodic refresh.
type Refresher interface {
	RecomputeAll() int
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New creates a scheduler. Jobs run once Start is called.
func New(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create gocron scheduler").Build()
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins running jobs.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleRefresh calls r.RecomputeAll every interval and returns the job ID.
func (s *Scheduler) ScheduleRefresh(interval time.Duration, r Refresher) (string, error) {
	if interval <= 0 {
		return "", ferrors.ValidationError("refresh interval must be positive").
			WithContext("interval", interval.String()).
			Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(refresh, r),
		gocron.WithName("stage-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create refresh job").Build()
	}
	id := job.ID().String()
	slog.Info("Scheduled stage refresh job", logfields.ScheduleID(id), slog.Duration("interval", interval))
	return id, nil
}

func refresh(r Refresher) {
	start := time.Now()
	n := r.RecomputeAll()
	slog.Debug("Scheduled stage refresh",
		slog.Int("projects", n),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
}
