package search

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
)

var docClock = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleListing(boost float64) *models.Listing {
	price := decimal.NewFromInt(5500000)
	lat, lon := 43.238949, 76.889709
	cityID := uuid.New()
	plan := "PRO"
	published := docClock.Add(-time.Hour)
	return &models.Listing{
		ID:            uuid.New(),
		OwnerID:       uuid.New(),
		CategoryID:    uuid.New(),
		CityID:        &cityID,
		Title:         "Экскаватор Hitachi ZX200",
		Description:   "Гусеничный экскаватор, наработка 4200 м/ч",
		Slug:          "hitachi-zx200",
		Status:        enums.ListingStatusPublished,
		DealType:      enums.DealTypeSale,
		SellerType:    enums.SellerTypeDealer,
		PriceKZT:      &price,
		PriceCurrency: "KZT",
		Specs:         json.RawMessage(`{"year": 2019, "engine": {"power_hp": "148", "fuel": "diesel"}}`),
		Params:        json.RawMessage(`{"attachments": ["ковш", "гидромолот"], "cabin": null}`),
		Latitude:      &lat,
		Longitude:     &lon,
		BoostScore:    boost,
		PublishedAt:   &published,
		CreatedAt:     docClock.Add(-72 * time.Hour),
		UpdatedAt:     docClock.Add(-time.Hour),
		Media: []models.ListingMedia{
			{ID: uuid.New(), Kind: enums.MediaKindDocument, URL: "https://cdn/doc.pdf"},
			{ID: uuid.New(), Kind: enums.MediaKindImage, URL: "https://cdn/1.jpg", Position: 1},
		},
		Category: &models.Category{Name: "Экскаваторы", Slug: "excavators"},
		City:     &models.City{ID: cityID, Name: "Алматы", Slug: "almaty"},
		Dealer:   &models.Dealer{Name: "Техника Плюс", Plan: &plan},
	}
}

func TestBuildDocumentProjectsListing(t *testing.T) {
	listing := sampleListing(2.0)
	doc := BuildDocument(listing, docClock)

	if doc.ID != listing.ID || doc.Status != enums.ListingStatusPublished {
		t.Fatalf("identity not copied: %+v", doc)
	}
	if doc.CategorySlug != "Экскаваторы" {
		t.Fatalf("expected category name as slug, got %q", doc.CategorySlug)
	}
	if doc.CitySlug == nil || *doc.CitySlug != "almaty" {
		t.Fatalf("expected city slug, got %v", doc.CitySlug)
	}
	if doc.DealerPlan == nil || *doc.DealerPlan != "PRO" {
		t.Fatalf("expected dealer plan, got %v", doc.DealerPlan)
	}
	if doc.Price == nil || *doc.Price != 5500000 {
		t.Fatalf("expected price 5500000, got %v", doc.Price)
	}
	if doc.Year == nil || *doc.Year != 2019 {
		t.Fatalf("expected year 2019, got %v", doc.Year)
	}
	if doc.MediaCount != 2 || !doc.HasMedia {
		t.Fatalf("expected two media with hasMedia, got %d %v", doc.MediaCount, doc.HasMedia)
	}
	if doc.Geo == nil || doc.Geo.Lat != 43.238949 {
		t.Fatalf("expected geo point, got %+v", doc.Geo)
	}
	if !doc.IsVIP || !doc.IsTOP || !doc.IsHighlight {
		t.Fatalf("boost 2.0 should set every tier flag: %+v", doc)
	}
	if got := ResolveBadges(doc); !reflect.DeepEqual(got, []string{"VIP"}) {
		t.Fatalf("expected VIP badge, got %v", got)
	}
	if math.Abs(doc.FreshnessScore-math.Exp(-1)) > 1e-9 {
		t.Fatalf("expected freshness e^-1 at 72h, got %f", doc.FreshnessScore)
	}
}

func TestBuildDocumentOptionalFields(t *testing.T) {
	listing := sampleListing(0)
	listing.Category = nil
	listing.City = nil
	listing.Dealer = nil
	listing.PriceKZT = nil
	listing.Latitude = nil
	listing.Specs = nil
	listing.Media = []models.ListingMedia{{Kind: enums.MediaKindDocument}}

	doc := BuildDocument(listing, docClock)
	if doc.CategorySlug != listing.CategoryID.String() {
		t.Fatalf("expected category id fallback, got %q", doc.CategorySlug)
	}
	if doc.Price != nil || doc.Year != nil || doc.Geo != nil || doc.CitySlug != nil {
		t.Fatalf("expected optional fields to be empty: %+v", doc)
	}
	if doc.HasMedia {
		t.Fatalf("documents alone must not count as media")
	}
	if doc.IsVIP || doc.IsTOP || doc.IsHighlight {
		t.Fatalf("zero boost should set no tier flag")
	}
	if got := ResolveBadges(doc); len(got) != 0 || got == nil {
		t.Fatalf("expected empty badge list, got %#v", got)
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(encoded, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"price", "geo", "year", "dealerPlan"} {
		if _, ok := raw[key]; ok {
			t.Fatalf("expected %s to be omitted", key)
		}
	}
}

func TestTierFlagsFollowThresholds(t *testing.T) {
	tests := []struct {
		boost  float64
		badges []string
	}{
		{boost: 2.0, badges: []string{"VIP"}},
		{boost: 1.5, badges: []string{"TOP"}},
		{boost: 0.3, badges: []string{"HIGHLIGHT"}},
		{boost: 0.29, badges: []string{}},
	}
	for _, tt := range tests {
		doc := BuildDocument(sampleListing(tt.boost), docClock)
		if got := ResolveBadges(doc); !reflect.DeepEqual(got, tt.badges) {
			t.Fatalf("boost %.2f: expected %v got %v", tt.boost, tt.badges, got)
		}
	}
}

func TestFreshnessScoreDecays(t *testing.T) {
	created := docClock
	if got := FreshnessScore(created, created); got != 1 {
		t.Fatalf("expected 1 for a new listing, got %f", got)
	}
	if got := FreshnessScore(created, created.Add(-time.Hour)); got != 1 {
		t.Fatalf("future creation should clamp to 1, got %f", got)
	}
	prev := 1.0
	for hours := 1; hours <= 240; hours += 24 {
		got := FreshnessScore(created, created.Add(time.Duration(hours)*time.Hour))
		if got >= prev {
			t.Fatalf("freshness must strictly decrease, %f after %f", got, prev)
		}
		prev = got
	}
}

func TestFlattenAttributes(t *testing.T) {
	params := json.RawMessage(`{"weight_t": "25", "boom": {"length_m": 34.5, "type": "telescopic"}, "extras": ["a", "b"], "note": null}`)
	specs := json.RawMessage(`{"year": 2015, "crane": true}`)

	got := FlattenAttributes(params, specs)
	keys := make([]string, 0, len(got))
	for _, attr := range got {
		keys = append(keys, attr.Key)
	}
	want := []string{"length_m", "type", "extras", "weight_t", "crane", "year"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("expected keys %v, got %v", want, keys)
	}

	byKey := map[string]Attribute{}
	for _, attr := range got {
		byKey[attr.Key] = attr
	}
	if a := byKey["length_m"]; a.Value != "34.5" || a.Numeric == nil || *a.Numeric != 34.5 {
		t.Fatalf("unexpected nested numeric attribute %+v", a)
	}
	if a := byKey["weight_t"]; a.Numeric == nil || *a.Numeric != 25 {
		t.Fatalf("numeric strings should parse, got %+v", a)
	}
	if a := byKey["extras"]; a.Value != "a,b" || a.Numeric != nil {
		t.Fatalf("arrays should join with comma, got %+v", a)
	}
	if a := byKey["crane"]; a.Value != "true" || a.Numeric != nil {
		t.Fatalf("booleans are text only, got %+v", a)
	}
	if _, ok := byKey["note"]; ok {
		t.Fatalf("null values must be skipped")
	}
}

func TestFlattenAttributesToleratesEmptyInput(t *testing.T) {
	if got := FlattenAttributes(nil, json.RawMessage(`not json`)); len(got) != 0 {
		t.Fatalf("expected no attributes, got %v", got)
	}
	if got := FlattenAttributes(json.RawMessage(`null`), nil); len(got) != 0 {
		t.Fatalf("expected no attributes for null, got %v", got)
	}
}
