package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/db"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
)

// Ownership is the slice of a subject row needed for access decisions.
type Ownership struct {
	OwnerID  uuid.UUID
	DealerID *uuid.UUID
	Status   enums.ListingStatus
}

// Repository reads and writes the listing fields the promotion pipeline owns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForIndex(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListPublishedPage(ctx context.Context, offset, limit int) ([]models.Listing, error)
	ListPublishedIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	FindOwnership(ctx context.Context, id uuid.UUID) (*Ownership, error)
	FindSpecialistOwnership(ctx context.Context, id uuid.UUID) (*Ownership, error)
	LockSubject(ctx context.Context, subjectType enums.SubjectType, id uuid.UUID) error
	UpdateBoostScore(ctx context.Context, id uuid.UUID, score float64) error
	UpdateSpecialistBoostScore(ctx context.Context, id uuid.UUID, score float64) error
	Touch(ctx context.Context, id uuid.UUID, now time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a listings repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindForIndex(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Category").
		Preload("City").
		Preload("Dealer").
		Where("id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListPublishedPage pages published listings in creation order for bulk indexing.
func (r *repository) ListPublishedPage(ctx context.Context, offset, limit int) ([]models.Listing, error) {
	var rows []models.Listing
	err := r.db.WithContext(ctx).
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Category").
		Preload("City").
		Preload("Dealer").
		Where("status = ?", enums.ListingStatusPublished).
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPublishedIDsAfter pages published listing ids in id order. Pass
// uuid.Nil for the first page.
func (r *repository) ListPublishedIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("status = ?", enums.ListingStatusPublished).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) FindOwnership(ctx context.Context, id uuid.UUID) (*Ownership, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Select("id", "owner_id", "dealer_id", "status").
		Where("id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &Ownership{OwnerID: listing.OwnerID, DealerID: listing.DealerID, Status: listing.Status}, nil
}

func (r *repository) FindSpecialistOwnership(ctx context.Context, id uuid.UUID) (*Ownership, error) {
	var specialist models.Specialist
	err := r.db.WithContext(ctx).
		Select("id", "user_id").
		Where("id = ?", id).
		First(&specialist).Error
	if err != nil {
		return nil, err
	}
	return &Ownership{OwnerID: specialist.UserID}, nil
}

// LockSubject takes the row lock on a listing or specialist until the
// surrounding transaction ends. A missing row locks nothing.
func (r *repository) LockSubject(ctx context.Context, subjectType enums.SubjectType, id uuid.UUID) error {
	var model any
	switch subjectType {
	case enums.SubjectListing:
		model = &models.Listing{}
	case enums.SubjectSpecialist:
		model = &models.Specialist{}
	default:
		return fmt.Errorf("unknown subject type %q", subjectType)
	}
	var ids []uuid.UUID
	return db.ForUpdate(r.db.WithContext(ctx)).
		Model(model).
		Where("id = ?", id).
		Pluck("id", &ids).Error
}

func (r *repository) UpdateBoostScore(ctx context.Context, id uuid.UUID, score float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		UpdateColumn("boost_score", score).Error
}

func (r *repository) UpdateSpecialistBoostScore(ctx context.Context, id uuid.UUID, score float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Specialist{}).
		Where("id = ?", id).
		UpdateColumn("boost_score", score).Error
}

// Touch bumps updated_at without changing anything else.
func (r *repository) Touch(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", now).Error
}
