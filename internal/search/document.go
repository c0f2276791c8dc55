package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
)

// Tier thresholds on boostScore.
const (
	vipThreshold       = 2.0
	topThreshold       = 1.5
	highlightThreshold = 0.3

	freshnessHalfLifeHours = 72.0
)

// ListingDocument is the search projection of a PUBLISHED listing.
type ListingDocument struct {
	ID             uuid.UUID           `json:"id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Slug           string              `json:"slug"`
	CategoryID     uuid.UUID           `json:"categoryId"`
	CategorySlug   string              `json:"categorySlug"`
	CityID         *uuid.UUID          `json:"cityId,omitempty"`
	CitySlug       *string             `json:"citySlug,omitempty"`
	RegionID       *uuid.UUID          `json:"regionId,omitempty"`
	DealerID       *uuid.UUID          `json:"dealerId,omitempty"`
	DealerPlan     *string             `json:"dealerPlan,omitempty"`
	DealType       enums.DealType      `json:"dealType"`
	SellerType     enums.SellerType    `json:"sellerType"`
	Status         enums.ListingStatus `json:"status"`
	Year           *float64            `json:"year,omitempty"`
	Price          *float64            `json:"price,omitempty"`
	PriceCurrency  string              `json:"priceCurrency"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	ExpiresAt      *time.Time          `json:"expiresAt"`
	PublishedAt    *time.Time          `json:"publishedAt"`
	MediaCount     int                 `json:"mediaCount"`
	HasMedia       bool                `json:"hasMedia"`
	IsVIP          bool                `json:"isVIP"`
	IsTOP          bool                `json:"isTOP"`
	IsHighlight    bool                `json:"isHighlight"`
	BoostScore     float64             `json:"boostScore"`
	FreshnessScore float64             `json:"freshnessScore"`
	Geo            *GeoPoint           `json:"geo,omitempty"`
	Attributes     []Attribute         `json:"attributes"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Attribute is one flattened leaf of a listing's params or specs.
type Attribute struct {
	Key     string   `json:"key"`
	Value   string   `json:"value"`
	Numeric *float64 `json:"numeric,omitempty"`
}

// BuildDocument projects a listing loaded with its media, category, city and dealer.
func BuildDocument(listing *models.Listing, now time.Time) ListingDocument {
	doc := ListingDocument{
		ID:             listing.ID,
		Title:          listing.Title,
		Description:    listing.Description,
		Slug:           listing.Slug,
		CategoryID:     listing.CategoryID,
		CategorySlug:   listing.CategoryID.String(),
		CityID:         listing.CityID,
		RegionID:       listing.RegionID,
		DealerID:       listing.DealerID,
		DealType:       listing.DealType,
		SellerType:     listing.SellerType,
		Status:         listing.Status,
		Year:           numericField(listing.Specs, "year"),
		PriceCurrency:  listing.PriceCurrency,
		CreatedAt:      listing.CreatedAt.UTC(),
		UpdatedAt:      listing.UpdatedAt.UTC(),
		ExpiresAt:      utcPtr(listing.ExpiresAt),
		PublishedAt:    utcPtr(listing.PublishedAt),
		MediaCount:     len(listing.Media),
		IsVIP:          listing.BoostScore >= vipThreshold,
		IsTOP:          listing.BoostScore >= topThreshold,
		IsHighlight:    listing.BoostScore >= highlightThreshold,
		BoostScore:     listing.BoostScore,
		FreshnessScore: FreshnessScore(listing.CreatedAt, now),
		Attributes:     FlattenAttributes(listing.Params, listing.Specs),
	}
	if listing.Category != nil && listing.Category.Name != "" {
		doc.CategorySlug = listing.Category.Name
	}
	if listing.City != nil {
		slug := listing.City.Slug
		doc.CitySlug = &slug
	}
	if listing.Dealer != nil {
		doc.DealerPlan = listing.Dealer.Plan
	}
	if listing.PriceKZT != nil {
		price := listing.PriceKZT.InexactFloat64()
		doc.Price = &price
	}
	for _, media := range listing.Media {
		if media.Kind == enums.MediaKindImage || media.Kind == enums.MediaKindVideo {
			doc.HasMedia = true
			break
		}
	}
	if listing.Latitude != nil && listing.Longitude != nil {
		doc.Geo = &GeoPoint{Lat: *listing.Latitude, Lon: *listing.Longitude}
	}
	return doc
}

// FreshnessScore decays exp(-ageHours/72). Future timestamps score 1.
func FreshnessScore(createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-ageHours / freshnessHalfLifeHours)
}

// ResolveBadges returns the single highest tier badge of a document.
func ResolveBadges(doc ListingDocument) []string {
	switch {
	case doc.IsVIP:
		return []string{string(enums.PlanVIP)}
	case doc.IsTOP:
		return []string{string(enums.PlanTop)}
	case doc.IsHighlight:
		return []string{string(enums.PlanHighlight)}
	default:
		return []string{}
	}
}

// FlattenAttributes walks params then specs depth first. Keys are visited in
// sorted order inside each object; nulls are dropped and arrays are joined with ",".
func FlattenAttributes(params, specs json.RawMessage) []Attribute {
	out := []Attribute{}
	for _, raw := range []json.RawMessage{params, specs} {
		object := decodeObject(raw)
		if object == nil {
			continue
		}
		out = flattenInto(out, object)
	}
	return out
}

func flattenInto(out []Attribute, object map[string]any) []Attribute {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := object[key]
		switch typed := value.(type) {
		case nil:
			continue
		case map[string]any:
			out = flattenInto(out, typed)
		default:
			text := stringify(typed)
			out = append(out, Attribute{Key: key, Value: text, Numeric: parseNumeric(text)})
		}
	}
	return out
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			if item == nil {
				parts = append(parts, "")
				continue
			}
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}

func parseNumeric(text string) *float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
		return nil
	}
	return &parsed
}

func numericField(raw json.RawMessage, key string) *float64 {
	object := decodeObject(raw)
	if object == nil {
		return nil
	}
	value, ok := object[key]
	if !ok || value == nil {
		return nil
	}
	if _, nested := value.(map[string]any); nested {
		return nil
	}
	return parseNumeric(stringify(value))
}

func decodeObject(raw json.RawMessage) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var object map[string]any
	if err := decoder.Decode(&object); err != nil {
		return nil
	}
	return object
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
