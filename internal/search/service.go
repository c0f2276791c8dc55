package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

const (
	defaultLimit = 20
	maxLimit     = 50
)

// ListingQuery is the caller-facing search request before defaults are applied.
type ListingQuery struct {
	Q          string
	CategoryID *uuid.UUID
	CityID     *uuid.UUID
	RegionID   *uuid.UUID
	DealerID   *uuid.UUID
	HasMedia   bool
	PriceFrom  *float64
	PriceTo    *float64
	YearFrom   *int
	YearTo     *int
	Sort       string
	Limit      *int
	Offset     *int
}

type ListingHit struct {
	ID            uuid.UUID        `json:"id"`
	Title         string           `json:"title"`
	Slug          string           `json:"slug"`
	PriceKZT      *string          `json:"priceKzt"`
	PriceCurrency string           `json:"priceCurrency"`
	CategoryID    uuid.UUID        `json:"categoryId"`
	CityID        *uuid.UUID       `json:"cityId"`
	RegionID      *uuid.UUID       `json:"regionId"`
	DealerID      *uuid.UUID       `json:"dealerId,omitempty"`
	SellerType    enums.SellerType `json:"sellerType"`
	BoostScore    float64          `json:"boostScore"`
	PublishedAt   *time.Time       `json:"publishedAt"`
	Badges        []string         `json:"badges"`
}

type Facets struct {
	Categories []FacetBucket `json:"categories"`
}

type SearchResult struct {
	Items  []ListingHit `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Facets Facets       `json:"facets"`
}

// QueryService answers public listing searches.
type QueryService struct {
	index Index
	logg  *logger.Logger
}

func NewQueryService(index Index, logg *logger.Logger) (*QueryService, error) {
	if index == nil {
		return nil, fmt.Errorf("search index required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &QueryService{index: index, logg: logg}, nil
}

// SearchListings runs a ranked search. A missing or failing index yields an
// empty result; only invalid input is returned as an error.
func (s *QueryService) SearchListings(ctx context.Context, input ListingQuery) (*SearchResult, error) {
	query, err := normalizeQuery(input)
	if err != nil {
		return nil, err
	}

	page, err := s.index.Search(ctx, query)
	if err != nil {
		if !errors.Is(err, ErrIndexMissing) {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"op":    "search",
				"error": err.Error(),
			})
			s.logg.Warn(logCtx, "search backend unavailable; returning empty result")
		}
		return emptyResult(query), nil
	}

	result := &SearchResult{
		Items:  make([]ListingHit, 0, len(page.Documents)),
		Total:  page.Total,
		Limit:  query.Limit,
		Offset: query.Offset,
		Facets: Facets{Categories: page.Categories},
	}
	if result.Facets.Categories == nil {
		result.Facets.Categories = []FacetBucket{}
	}
	for _, doc := range page.Documents {
		result.Items = append(result.Items, toHit(doc))
	}
	return result, nil
}

func normalizeQuery(input ListingQuery) (Query, error) {
	sort, err := enums.ParseSortOption(input.Sort)
	if err != nil {
		return Query{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort option").
			WithDetails(map[string]any{"sort": input.Sort})
	}
	limit := defaultLimit
	if input.Limit != nil {
		limit = min(max(*input.Limit, 1), maxLimit)
	}
	offset := 0
	if input.Offset != nil {
		if *input.Offset < 0 {
			return Query{}, pkgerrors.New(pkgerrors.CodeValidation, "offset must not be negative").
				WithDetails(map[string]any{"offset": *input.Offset})
		}
		offset = *input.Offset
	}

	return Query{
		Text:       normalizeText(input.Q),
		CategoryID: input.CategoryID,
		CityID:     input.CityID,
		RegionID:   input.RegionID,
		DealerID:   input.DealerID,
		HasMedia:   input.HasMedia,
		PriceFrom:  input.PriceFrom,
		PriceTo:    input.PriceTo,
		YearFrom:   intToFloat(input.YearFrom),
		YearTo:     intToFloat(input.YearTo),
		Sort:       sort,
		Offset:     offset,
		Limit:      limit,
	}, nil
}

// normalizeText reduces q to its word terms joined by single spaces. Input
// without letters or digits becomes "" and applies no text filter.
func normalizeText(q string) string {
	return strings.Join(tokenize(q), " ")
}

func emptyResult(query Query) *SearchResult {
	return &SearchResult{
		Items:  []ListingHit{},
		Limit:  query.Limit,
		Offset: query.Offset,
		Facets: Facets{Categories: []FacetBucket{}},
	}
}

func toHit(doc ListingDocument) ListingHit {
	hit := ListingHit{
		ID:            doc.ID,
		Title:         doc.Title,
		Slug:          doc.Slug,
		PriceCurrency: doc.PriceCurrency,
		CategoryID:    doc.CategoryID,
		CityID:        doc.CityID,
		RegionID:      doc.RegionID,
		DealerID:      doc.DealerID,
		SellerType:    doc.SellerType,
		BoostScore:    doc.BoostScore,
		PublishedAt:   doc.PublishedAt,
		Badges:        ResolveBadges(doc),
	}
	if doc.Price != nil {
		price := decimal.NewFromFloat(*doc.Price).String()
		hit.PriceKZT = &price
	}
	return hit
}

func intToFloat(value *int) *float64 {
	if value == nil {
		return nil
	}
	f := float64(*value)
	return &f
}
