package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// PromotionActivation grants a plan's boost to a subject for a bounded window.
type PromotionActivation struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubjectType  enums.SubjectType      `gorm:"column:subject_type;type:subject_type;not null"`
	SubjectID    uuid.UUID              `gorm:"column:subject_id;type:uuid;not null"`
	ListingID    *uuid.UUID             `gorm:"column:listing_id;type:uuid"`
	SpecialistID *uuid.UUID             `gorm:"column:specialist_id;type:uuid"`
	PlanCode     enums.PlanCode         `gorm:"column:plan_code;type:plan_code;not null"`
	Status       enums.ActivationStatus `gorm:"column:status;type:activation_status;not null"`
	StartedAt    time.Time              `gorm:"column:started_at;not null"`
	ExpiresAt    time.Time              `gorm:"column:expires_at;not null"`
	OrderItemID  *uuid.UUID             `gorm:"column:order_item_id;type:uuid"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// IsLiveAt reports whether the activation still grants its boost at now.
func (a PromotionActivation) IsLiveAt(now time.Time) bool {
	return a.Status == enums.ActivationActive && a.ExpiresAt.After(now)
}
