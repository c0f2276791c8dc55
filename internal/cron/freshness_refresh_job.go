package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/outbox/payloads"
)

const (
	defaultFreshnessBatch = 200
	defaultFreshnessEvery = 6 * time.Hour
)

type publishedLister interface {
	ListPublishedIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

// FreshnessRefreshJobParams wire the job that re-queues every published
// listing for indexing so its freshness score keeps decaying in the index.
type FreshnessRefreshJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Listings  publishedLister
	Reindex   reindexRequester
	BatchSize int
	Every     time.Duration
}

type freshnessRefreshJob struct {
	logg     *logger.Logger
	db       txRunner
	listings publishedLister
	reindex  reindexRequester
	batch    int
	every    time.Duration
}

// NewFreshnessRefreshJob builds the job. Each page of listing ids is queued
// in its own transaction, so a failure keeps the pages already committed.
func NewFreshnessRefreshJob(params FreshnessRefreshJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Listings == nil:
		return nil, errors.New("listings repository required")
	case params.Reindex == nil:
		return nil, errors.New("reindex requester required")
	}
	job := &freshnessRefreshJob{
		logg:     params.Logger,
		db:       params.DB,
		listings: params.Listings,
		reindex:  params.Reindex,
		batch:    params.BatchSize,
		every:    params.Every,
	}
	if job.batch <= 0 {
		job.batch = defaultFreshnessBatch
	}
	if job.every <= 0 {
		job.every = defaultFreshnessEvery
	}
	return job, nil
}

func (j *freshnessRefreshJob) Name() string { return "freshness-refresh" }

func (j *freshnessRefreshJob) Every() time.Duration { return j.every }

func (j *freshnessRefreshJob) Run(ctx context.Context) error {
	var (
		queued int
		after  = uuid.Nil
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := j.listings.ListPublishedIDsAfter(ctx, after, j.batch)
		if err != nil {
			return fmt.Errorf("list published after %s: %w", after, err)
		}
		if len(ids) == 0 {
			break
		}
		if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			for _, id := range ids {
				if err := j.reindex.RequestListingReindex(ctx, tx, id, payloads.ReindexReasonFreshness, nil); err != nil {
					return fmt.Errorf("queue reindex %s: %w", id, err)
				}
			}
			return nil
		}); err != nil {
			return err
		}
		queued += len(ids)
		after = ids[len(ids)-1]
		if len(ids) < j.batch {
			break
		}
	}

	j.logg.Info(j.logg.WithField(ctx, "listings_queued", queued), "freshness refresh queued")
	return nil
}
