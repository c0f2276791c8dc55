package promotions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/internal/listings"
	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

const day = 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SubjectAccess gates promotion of a listing or specialist.
type SubjectAccess interface {
	CanMutate(ctx context.Context, tx *gorm.DB, subjectType enums.SubjectType, subjectID uuid.UUID, identity auth.Identity) error
}

// ListingSyncer pushes a listing's current state into the search index.
type ListingSyncer interface {
	SyncListingByID(ctx context.Context, id uuid.UUID) error
}

// ActivateInput describes one promotion grant.
type ActivateInput struct {
	SubjectType  enums.SubjectType
	SubjectID    uuid.UUID
	PlanCode     enums.PlanCode
	DurationDays int
	OrderItemID  *uuid.UUID
}

// ExpiredSubjects lists the distinct subjects whose activations were expired.
type ExpiredSubjects struct {
	ListingIDs    []uuid.UUID
	SpecialistIDs []uuid.UUID
}

func (e ExpiredSubjects) Empty() bool {
	return len(e.ListingIDs) == 0 && len(e.SpecialistIDs) == 0
}

type ApplyPromotionInput struct {
	ListingID uuid.UUID
	PlanCode  enums.PlanCode
	Days      int
	Actor     auth.Identity
}

// ApplyPromotionResult carries the new activation (nil for AUTOBUMP) and the listing's boost.
type ApplyPromotionResult struct {
	Promotion  *models.PromotionActivation `json:"promotion"`
	BoostScore float64                     `json:"boostScore"`
}

type Service struct {
	repo     Repository
	listings listings.Repository
	tx       txRunner
	access   SubjectAccess
	syncer   ListingSyncer
	logg     *logger.Logger
	now      func() time.Time
}

type ServiceParams struct {
	Repo     Repository
	Listings listings.Repository
	Tx       txRunner
	Access   SubjectAccess
	// Syncer may be nil; ApplyPromotion then leaves the index to the next resync.
	Syncer ListingSyncer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Access == nil {
		return nil, fmt.Errorf("subject access checker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.Repo,
		listings: params.Listings,
		tx:       params.Tx,
		access:   params.Access,
		syncer:   params.Syncer,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Now exposes the service clock so callers stamp writes consistently.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Activate inserts an ACTIVE activation starting now. Overlaps are allowed.
func (s *Service) Activate(ctx context.Context, tx *gorm.DB, input ActivateInput) (*models.PromotionActivation, error) {
	if !input.SubjectType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subject type")
	}
	if input.SubjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id required")
	}
	if !input.PlanCode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan code")
	}
	if input.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be at least one day")
	}

	started := s.Now()
	subjectID := input.SubjectID
	activation := &models.PromotionActivation{
		ID:          uuid.New(),
		SubjectType: input.SubjectType,
		SubjectID:   subjectID,
		PlanCode:    input.PlanCode,
		Status:      enums.ActivationActive,
		StartedAt:   started,
		ExpiresAt:   started.Add(time.Duration(input.DurationDays) * day),
		OrderItemID: input.OrderItemID,
	}
	switch input.SubjectType {
	case enums.SubjectListing:
		activation.ListingID = &subjectID
	case enums.SubjectSpecialist:
		activation.SpecialistID = &subjectID
	}

	if err := s.repo.WithTx(tx).Create(ctx, activation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promotion activation")
	}
	return activation, nil
}

// CurrentBoost derives the subject's boost from its live activations.
func (s *Service) CurrentBoost(ctx context.Context, tx *gorm.DB, subjectType enums.SubjectType, subjectID uuid.UUID, now time.Time) (float64, error) {
	live, err := s.repo.WithTx(tx).ListLive(ctx, subjectType, subjectID, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load live activations")
	}
	return ComputeBoost(live, now), nil
}

// RecomputeListingBoost derives the listing's boost and stores it on the listing row.
// The listing row is locked before activations are read, so concurrent
// recomputes for one listing apply in commit order.
func (s *Service) RecomputeListingBoost(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, now time.Time) (float64, error) {
	return s.recompute(ctx, tx, enums.SubjectListing, listingID, now)
}

func (s *Service) RecomputeSpecialistBoost(ctx context.Context, tx *gorm.DB, specialistID uuid.UUID, now time.Time) (float64, error) {
	return s.recompute(ctx, tx, enums.SubjectSpecialist, specialistID, now)
}

func (s *Service) recompute(ctx context.Context, tx *gorm.DB, subjectType enums.SubjectType, subjectID uuid.UUID, now time.Time) (float64, error) {
	repo := s.listings.WithTx(tx)
	if err := repo.LockSubject(ctx, subjectType, subjectID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock "+strings.ToLower(string(subjectType)))
	}
	boost, err := s.CurrentBoost(ctx, tx, subjectType, subjectID, now)
	if err != nil {
		return 0, err
	}
	if subjectType == enums.SubjectSpecialist {
		err = repo.UpdateSpecialistBoostScore(ctx, subjectID, boost)
	} else {
		err = repo.UpdateBoostScore(ctx, subjectID, boost)
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist "+strings.ToLower(string(subjectType))+" boost")
	}
	return boost, nil
}

// ExpireDue expires every ACTIVE activation with expires_at <= now. Safe to run concurrently.
func (s *Service) ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (ExpiredSubjects, error) {
	rows, err := s.repo.WithTx(tx).ExpireDue(ctx, now)
	if err != nil {
		return ExpiredSubjects{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire due activations")
	}

	listingSet := map[uuid.UUID]struct{}{}
	specialistSet := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		switch row.SubjectType {
		case enums.SubjectListing:
			listingSet[row.SubjectID] = struct{}{}
		case enums.SubjectSpecialist:
			specialistSet[row.SubjectID] = struct{}{}
		}
	}
	return ExpiredSubjects{
		ListingIDs:    sortedIDs(listingSet),
		SpecialistIDs: sortedIDs(specialistSet),
	}, nil
}

// ApplyPromotion grants a tier to a listing directly, outside the order flow.
// AUTOBUMP only refreshes updated_at and keeps the current boost.
func (s *Service) ApplyPromotion(ctx context.Context, input ApplyPromotionInput) (*ApplyPromotionResult, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PlanCode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid promotion type")
	}
	if input.Days <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be positive")
	}

	result := &ApplyPromotionResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.access.CanMutate(ctx, tx, enums.SubjectListing, input.ListingID, input.Actor); err != nil {
			return err
		}
		now := s.Now()
		if input.PlanCode == enums.PlanAutobump {
			if err := s.listings.WithTx(tx).Touch(ctx, input.ListingID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump listing")
			}
		} else {
			activation, err := s.Activate(ctx, tx, ActivateInput{
				SubjectType:  enums.SubjectListing,
				SubjectID:    input.ListingID,
				PlanCode:     input.PlanCode,
				DurationDays: input.Days,
			})
			if err != nil {
				return err
			}
			result.Promotion = activation
		}
		boost, err := s.RecomputeListingBoost(ctx, tx, input.ListingID, now)
		if err != nil {
			return err
		}
		result.BoostScore = boost
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncAfterCommit(ctx, input.ListingID)
	return result, nil
}

func (s *Service) syncAfterCommit(ctx context.Context, listingID uuid.UUID) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.SyncListingByID(ctx, listingID); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"listing_id": listingID.String(),
			"op":         "sync",
			"error":      err.Error(),
		})
		s.logg.Warn(logCtx, "search sync after promotion failed")
	}
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
