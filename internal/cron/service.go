package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// Cadenced is implemented by jobs that should run less often than every
// tick. A job without it runs on every tick the worker holds the lock.
type Cadenced interface {
	Every() time.Duration
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the tick period. Zero selects one hour.
	Interval time.Duration
}

// Service ticks at a fixed period and runs every job that is due while it
// holds the cluster lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastRan map[string]time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	svc := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      time.Now,
		lastRan:  map[string]time.Time{},
	}
	if svc.registry == nil {
		svc.registry = &Registry{}
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run ticks immediately and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	err := s.RunOnce(ctx)
	if err == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "failed_jobs", len(multierr.Errors(err)))
	s.logg.Error(ctx, "cron tick failed", err)
}

// RunOnce runs the due jobs under the lock. Jobs are independent: every due
// job runs and the returned error combines their failures. Without the lock
// the tick is a no-op.
func (s *Service) RunOnce(ctx context.Context) (errs error) {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lock held elsewhere; tick skipped")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	due := s.dueJobs()
	ctx = s.logg.WithField(ctx, "due_jobs", len(due))
	s.logg.Debug(ctx, "cron tick")
	for _, job := range due {
		if err := s.runJob(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errs
}

// dueJobs returns the jobs whose cadence has elapsed and stamps them as run.
// Failed runs keep their stamp so a broken job does not spin every tick.
func (s *Service) dueJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []Job
	for _, job := range s.registry.Jobs() {
		if c, ok := job.(Cadenced); ok {
			if last, seen := s.lastRan[job.Name()]; seen && now.Sub(last) < c.Every() {
				continue
			}
		}
		s.lastRan[job.Name()] = now
		due = append(due, job)
	}
	return due
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	started := time.Now()
	err := job.Run(ctx)
	took := time.Since(started)
	s.metrics.ObserveRun(job.Name(), took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return err
	}
	s.logg.Info(ctx, "cron job finished")
	return nil
}
