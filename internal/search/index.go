package search

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// ErrIndexMissing is returned by Search when the listings index has not been created yet.
var ErrIndexMissing = errors.New("search index does not exist")

// Ranking weights shared by every Index implementation.
const (
	vipBonus       = 4.0
	topBonus       = 2.0
	highlightBonus = 1.2

	boostFactor            = 1.5
	freshnessFactor        = 2.0
	missingFreshness       = 0.1
	titleWeight            = 3.0
	facetCategoryBucketMax = 50
)

// Index is the storage behind the listing search projection.
type Index interface {
	Exists(ctx context.Context) (bool, error)
	Ensure(ctx context.Context) error
	Recreate(ctx context.Context) error
	Upsert(ctx context.Context, doc ListingDocument) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkUpsert(ctx context.Context, docs []ListingDocument) error
	Search(ctx context.Context, query Query) (*Page, error)
	Ping(ctx context.Context) error
}

// Query is a validated search request. Nil pointers mean "no filter".
type Query struct {
	Text       string
	CategoryID *uuid.UUID
	CityID     *uuid.UUID
	RegionID   *uuid.UUID
	DealerID   *uuid.UUID
	HasMedia   bool
	PriceFrom  *float64
	PriceTo    *float64
	YearFrom   *float64
	YearTo     *float64
	Sort       enums.SortOption
	Offset     int
	Limit      int
}

type Page struct {
	Total      int
	Documents  []ListingDocument
	Categories []FacetBucket
}

type FacetBucket struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// tierBonus applies once at the highest qualifying tier.
func tierBonus(doc ListingDocument) float64 {
	switch {
	case doc.IsVIP:
		return vipBonus
	case doc.IsTOP:
		return topBonus
	case doc.IsHighlight:
		return highlightBonus
	default:
		return 0
	}
}

// promotionScore is the non-text part of the composite ranking score.
func promotionScore(doc ListingDocument) float64 {
	return tierBonus(doc) + doc.BoostScore*boostFactor + doc.FreshnessScore*freshnessFactor
}

func newerFirst(a, b time.Time) int {
	switch {
	case a.After(b):
		return -1
	case a.Before(b):
		return 1
	default:
		return 0
	}
}
