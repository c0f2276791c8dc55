package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null"`
	Slug string    `gorm:"column:slug;not null;uniqueIndex"`
}

type City struct {
	ID       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RegionID *uuid.UUID `gorm:"column:region_id;type:uuid"`
	Name     string     `gorm:"column:name;not null"`
	Slug     string     `gorm:"column:slug;not null;uniqueIndex"`
}

// Dealer is a business account; Plan is its subscription label shown in search.
type Dealer struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	Name    string    `gorm:"column:name;not null"`
	Plan    *string   `gorm:"column:plan"`
}

// Specialist is an equipment operator profile. It can be promoted but is not indexed.
type Specialist struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	BoostScore float64   `gorm:"column:boost_score;not null;default:0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
