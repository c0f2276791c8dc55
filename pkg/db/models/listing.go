package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// Listing is an equipment advert. BoostScore mirrors the promotion ledger.
type Listing struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID       uuid.UUID           `gorm:"column:owner_id;type:uuid;not null"`
	DealerID      *uuid.UUID          `gorm:"column:dealer_id;type:uuid"`
	CategoryID    uuid.UUID           `gorm:"column:category_id;type:uuid;not null"`
	CityID        *uuid.UUID          `gorm:"column:city_id;type:uuid"`
	RegionID      *uuid.UUID          `gorm:"column:region_id;type:uuid"`
	Title         string              `gorm:"column:title;not null"`
	Description   string              `gorm:"column:description;not null;default:''"`
	Slug          string              `gorm:"column:slug;not null"`
	Status        enums.ListingStatus `gorm:"column:status;type:listing_status;not null"`
	DealType      enums.DealType      `gorm:"column:deal_type;type:deal_type;not null"`
	SellerType    enums.SellerType    `gorm:"column:seller_type;type:seller_type;not null"`
	PriceKZT      *decimal.Decimal    `gorm:"column:price_kzt;type:numeric(14,2)"`
	PriceCurrency string              `gorm:"column:price_currency;not null;default:'KZT'"`
	Params        json.RawMessage     `gorm:"column:params;type:jsonb"`
	Specs         json.RawMessage     `gorm:"column:specs;type:jsonb"`
	Latitude      *float64            `gorm:"column:latitude"`
	Longitude     *float64            `gorm:"column:longitude"`
	BoostScore    float64             `gorm:"column:boost_score;not null;default:0"`
	ExpiresAt     *time.Time          `gorm:"column:expires_at"`
	PublishedAt   *time.Time          `gorm:"column:published_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Media    []ListingMedia `gorm:"foreignKey:ListingID;references:ID"`
	Category *Category      `gorm:"foreignKey:CategoryID;references:ID"`
	City     *City          `gorm:"foreignKey:CityID;references:ID"`
	Dealer   *Dealer        `gorm:"foreignKey:DealerID;references:ID"`
}

// ListingMedia references an uploaded asset attached to a listing.
type ListingMedia struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID uuid.UUID       `gorm:"column:listing_id;type:uuid;not null;index"`
	Kind      enums.MediaKind `gorm:"column:kind;type:media_kind;not null"`
	URL       string          `gorm:"column:url;not null"`
	Position  int             `gorm:"column:position;not null;default:0"`
}

func (ListingMedia) TableName() string { return "listing_media" }
