package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/internal/promotions"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/outbox"
	"github.com/texnika/texnika-backend/pkg/outbox/payloads"
)

const (
	boostSavepoint   = "expiry_boost"
	reindexSavepoint = "expiry_reindex"
)

type promotionLedger interface {
	Now() time.Time
	ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (promotions.ExpiredSubjects, error)
	RecomputeListingBoost(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, now time.Time) (float64, error)
	RecomputeSpecialistBoost(ctx context.Context, tx *gorm.DB, specialistID uuid.UUID, now time.Time) (float64, error)
}

type reindexRequester interface {
	RequestListingReindex(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, reason string, actor *outbox.ActorRef) error
}

type PromotionExpiryJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Ledger  promotionLedger
	Reindex reindexRequester
}

// NewPromotionExpiryJob expires due promotion activations, recomputes the
// boost of every affected subject and queues a search resync per listing.
func NewPromotionExpiryJob(params PromotionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("promotion ledger required")
	}
	if params.Reindex == nil {
		return nil, fmt.Errorf("reindex requester required")
	}
	return &promotionExpiryJob{
		logg:    params.Logger,
		db:      params.DB,
		ledger:  params.Ledger,
		reindex: params.Reindex,
	}, nil
}

type promotionExpiryJob struct {
	logg    *logger.Logger
	db      txRunner
	ledger  promotionLedger
	reindex reindexRequester
}

func (j *promotionExpiryJob) Name() string { return "promotion-expiry" }

// Run commits the expiry even when individual subjects fail to refresh.
// Those failures are returned together after the transaction.
func (j *promotionExpiryJob) Run(ctx context.Context) error {
	now := j.ledger.Now().UTC()
	var (
		expired  promotions.ExpiredSubjects
		failures error
	)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		expired, err = j.ledger.ExpireDue(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, id := range expired.ListingIDs {
			failures = multierr.Append(failures, j.refreshListing(ctx, tx, id, now))
		}
		for _, id := range expired.SpecialistIDs {
			failures = multierr.Append(failures, j.refreshSpecialist(ctx, tx, id, now))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("expire promotions: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"listings":    len(expired.ListingIDs),
		"specialists": len(expired.SpecialistIDs),
		"failures":    len(multierr.Errors(failures)),
		"now":         now,
	})
	j.logg.Info(logCtx, "promotion expiry complete")
	return failures
}

func (j *promotionExpiryJob) refreshListing(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, now time.Time) error {
	logCtx := j.logg.WithListingID(ctx, listingID.String())
	if err := withSavepoint(tx, boostSavepoint, func() error {
		_, err := j.ledger.RecomputeListingBoost(ctx, tx, listingID, now)
		return err
	}); err != nil {
		j.logg.Error(logCtx, "recompute listing boost failed", err)
		return fmt.Errorf("listing %s boost: %w", listingID, err)
	}
	if err := withSavepoint(tx, reindexSavepoint, func() error {
		return j.reindex.RequestListingReindex(ctx, tx, listingID, payloads.ReindexReasonPromotionExpired, nil)
	}); err != nil {
		j.logg.Error(logCtx, "queue listing reindex failed", err)
		return fmt.Errorf("listing %s reindex: %w", listingID, err)
	}
	return nil
}

// Specialists are not indexed, so only the boost is refreshed.
func (j *promotionExpiryJob) refreshSpecialist(ctx context.Context, tx *gorm.DB, specialistID uuid.UUID, now time.Time) error {
	if err := withSavepoint(tx, boostSavepoint, func() error {
		_, err := j.ledger.RecomputeSpecialistBoost(ctx, tx, specialistID, now)
		return err
	}); err != nil {
		logCtx := j.logg.WithField(ctx, "specialist_id", specialistID.String())
		j.logg.Error(logCtx, "recompute specialist boost failed", err)
		return fmt.Errorf("specialist %s boost: %w", specialistID, err)
	}
	return nil
}

// withSavepoint undoes fn's writes on failure without aborting the outer transaction.
func withSavepoint(tx *gorm.DB, name string, fn func() error) error {
	if err := tx.SavePoint(name).Error; err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return multierr.Append(err, rbErr)
		}
		return err
	}
	return nil
}
