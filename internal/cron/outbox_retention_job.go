package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/logger"
)

const (
	defaultRetentionDays  = 30
	defaultRetentionEvery = 24 * time.Hour
)

// OutboxRetentionJobParams wire the outbox pruning job. Retention is in days.
type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	Retention  int
	Every      time.Duration
	Now        func() time.Time
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg  *logger.Logger
	db    txRunner
	repo  outboxPruner
	keep  int
	every time.Duration
	now   func() time.Time
}

// NewOutboxRetentionJob deletes published outbox rows older than the
// retention window. Pending rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:  params.Logger,
		db:    params.DB,
		repo:  params.Repository,
		keep:  params.Retention,
		every: params.Every,
		now:   params.Now,
	}
	if job.keep <= 0 {
		job.keep = defaultRetentionDays
	}
	if job.every <= 0 {
		job.every = defaultRetentionEvery
	}
	if job.now == nil {
		job.now = time.Now
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Every() time.Duration { return j.every }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.keep)

	var pruned int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		pruned, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff)
		return err
	}); err != nil {
		return fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": pruned,
	}), "outbox pruned")
	return nil
}
