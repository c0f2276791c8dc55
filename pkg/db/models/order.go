package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// Order groups promotion purchases for a single user.
type Order struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Status      enums.OrderStatus     `gorm:"column:status;type:order_status;not null"`
	TotalKZT    int64                 `gorm:"column:total_kzt;not null"`
	Provider    enums.PaymentProvider `gorm:"column:provider;not null"`
	PaymentMode *enums.PaymentMode    `gorm:"column:payment_mode"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	PaidAt      *time.Time            `gorm:"column:paid_at"`
	CancelledAt *time.Time            `gorm:"column:cancelled_at"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
}

// OrderItem snapshots the plan price and duration at order time.
type OrderItem struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	SubjectType  enums.SubjectType `gorm:"column:subject_type;type:subject_type;not null"`
	SubjectID    uuid.UUID         `gorm:"column:subject_id;type:uuid;not null"`
	PlanCode     enums.PlanCode    `gorm:"column:plan_code;type:plan_code;not null"`
	PriceKZT     int64             `gorm:"column:price_kzt;not null"`
	DurationDays int               `gorm:"column:duration_days;not null"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
}
