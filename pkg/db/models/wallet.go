package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// Wallet holds a user's prepaid balance. One wallet per user.
type Wallet struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	BalanceKZT int64     `gorm:"column:balance_kzt;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Transaction is an append-only wallet movement.
type Transaction struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID  uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type      enums.TransactionType `gorm:"column:type;type:transaction_type;not null"`
	AmountKZT int64                 `gorm:"column:amount_kzt;not null"`
	OrderID   *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Meta      json.RawMessage       `gorm:"column:meta;type:jsonb"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
