package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	// StartAt anchors the first cycle to a wall-clock time ("02:00"). Empty
	// runs immediately.
	StartAt    string
	Location   *time.Location
	// JobTimeout bounds a single job. Zero leaves jobs bounded only by ctx.
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	startAt    *time.Time
	location   *time.Location
	jobTimeout time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron logger is required")
	case params.Lock == nil:
		return nil, errors.New("cron lock is required")
	case params.JobTimeout < 0:
		return nil, errors.New("cron job timeout must not be negative")
	}
	svc := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		location:   params.Location,
		jobTimeout: params.JobTimeout,
		now:        time.Now,
	}
	if svc.registry == nil {
		svc.registry = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	if svc.location == nil {
		svc.location = time.UTC
	}
	if params.StartAt != "" {
		at, err := time.Parse("15:04", params.StartAt)
		if err != nil {
			return nil, fmt.Errorf("parse start time %q: %w", params.StartAt, err)
		}
		svc.startAt = &at
	}
	return svc, nil
}

// Run waits for the first scheduled slot, then runs a cycle every interval
// until ctx ends. Job failures are logged, never returned.
func (s *Service) Run(ctx context.Context) error {
	if wait := s.untilFirstRun(); wait > 0 {
		s.logg.Info(s.logg.WithField(ctx, "first_run_in", wait.String()), "cron waiting for scheduled start")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job a single time under the lock and returns the
// combined job failures. A lock held elsewhere is not an error.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held by another instance, skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	var failures error
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return multierr.Append(failures, ctx.Err())
		}
		if err := s.runJob(ctx, job); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "failed_jobs", len(multierr.Errors(failures))), "scheduled run complete")
	return failures
}

func (s *Service) untilFirstRun() time.Duration {
	if s.startAt == nil {
		return 0
	}
	now := s.now().In(s.location)
	return nextRun(now, s.startAt.Hour(), s.startAt.Minute()).Sub(now)
}

// nextRun is the first hour:minute strictly after now, in now's location.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		elapsed := s.now().Sub(start)
		s.metrics.ObserveRun(job.Name(), err, elapsed, start.Add(elapsed))
		doneCtx := s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.logg.Error(doneCtx, "job failed", err)
			return
		}
		s.logg.Info(doneCtx, "job completed")
	}()

	s.logg.Debug(jobCtx, "job start")
	return job.Run(jobCtx)
}
