package promotions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
)

// Repository persists promotion activations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, activation *models.PromotionActivation) error
	ListLive(ctx context.Context, subjectType enums.SubjectType, subjectID uuid.UUID, now time.Time) ([]models.PromotionActivation, error)
	ExpireDue(ctx context.Context, now time.Time) ([]models.PromotionActivation, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, activation *models.PromotionActivation) error {
	if activation.ID == uuid.Nil {
		activation.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(activation).Error
}

func (r *repository) ListLive(ctx context.Context, subjectType enums.SubjectType, subjectID uuid.UUID, now time.Time) ([]models.PromotionActivation, error) {
	var rows []models.PromotionActivation
	err := r.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Where("status = ? AND expires_at > ?", enums.ActivationActive, now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExpireDue flips due ACTIVE rows to EXPIRED and returns the rows it flipped.
// Rows held by a concurrent tick are skipped, not waited on.
func (r *repository) ExpireDue(ctx context.Context, now time.Time) ([]models.PromotionActivation, error) {
	var due []models.PromotionActivation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Select("id", "subject_type", "subject_id").
		Where("status = ? AND expires_at <= ?", enums.ActivationActive, now).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, row := range due {
		ids = append(ids, row.ID)
	}
	err = r.db.WithContext(ctx).
		Model(&models.PromotionActivation{}).
		Where("id IN ? AND status = ?", ids, enums.ActivationActive).
		UpdateColumn("status", enums.ActivationExpired).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}
