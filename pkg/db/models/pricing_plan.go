package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// PricingPlan is a purchasable promotion tier. Prices are whole tenge.
type PricingPlan struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         enums.PlanCode `gorm:"column:code;type:plan_code;not null;uniqueIndex"`
	Title        string         `gorm:"column:title;not null"`
	Description  *string        `gorm:"column:description"`
	PriceKZT     int64          `gorm:"column:price_kzt;not null"`
	DurationDays int            `gorm:"column:duration_days;not null"`
	Active       bool           `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
