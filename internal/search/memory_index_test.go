package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

type docOption func(*ListingDocument)

func withPrice(p float64) docOption { return func(d *ListingDocument) { d.Price = &p } }
func withYear(y float64) docOption  { return func(d *ListingDocument) { d.Year = &y } }
func withBoost(b float64) docOption {
	return func(d *ListingDocument) {
		d.BoostScore = b
		d.IsVIP = b >= vipThreshold
		d.IsTOP = b >= topThreshold
		d.IsHighlight = b >= highlightThreshold
	}
}
func withCategory(id uuid.UUID) docOption { return func(d *ListingDocument) { d.CategoryID = id } }
func withStatus(s enums.ListingStatus) docOption {
	return func(d *ListingDocument) { d.Status = s }
}
func createdAgo(h int) docOption {
	return func(d *ListingDocument) {
		d.CreatedAt = docClock.Add(-time.Duration(h) * time.Hour)
		d.FreshnessScore = FreshnessScore(d.CreatedAt, docClock)
	}
}

func newDoc(title, description string, opts ...docOption) ListingDocument {
	doc := ListingDocument{
		ID:             uuid.New(),
		Title:          title,
		Description:    description,
		CategoryID:     uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Status:         enums.ListingStatusPublished,
		PriceCurrency:  "KZT",
		CreatedAt:      docClock,
		FreshnessScore: 1,
		Attributes:     []Attribute{},
	}
	for _, opt := range opts {
		opt(&doc)
	}
	return doc
}

func seedIndex(t *testing.T, docs ...ListingDocument) *MemoryIndex {
	t.Helper()
	index := NewMemoryIndex()
	if err := index.BulkUpsert(context.Background(), docs); err != nil {
		t.Fatalf("seed index: %v", err)
	}
	return index
}

func ids(page *Page) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(page.Documents))
	for _, doc := range page.Documents {
		out = append(out, doc.ID)
	}
	return out
}

func TestMemoryIndexMissingBeforeFirstWrite(t *testing.T) {
	index := NewMemoryIndex()
	if _, err := index.Search(context.Background(), Query{Limit: 10}); err != ErrIndexMissing {
		t.Fatalf("expected ErrIndexMissing, got %v", err)
	}
	exists, _ := index.Exists(context.Background())
	if exists {
		t.Fatalf("index should not exist yet")
	}
}

func TestMemoryIndexCyrillicTextPriceFloorPriceAsc(t *testing.T) {
	cheap := newDoc("Экскаватор JCB", "компактный", withPrice(3000000))
	mid := newDoc("Гусеничный ЭКСКАВАТОР Komatsu", "", withPrice(6000000))
	high := newDoc("Кран", "Колёсный экскаватор с краном", withPrice(9000000))
	noPrice := newDoc("Экскаватор без цены", "", createdAgo(1))
	other := newDoc("Бульдозер Shantui", "", withPrice(7000000))
	draft := newDoc("Экскаватор черновик", "", withPrice(8000000), withStatus(enums.ListingStatusDraft))
	index := seedIndex(t, cheap, mid, high, noPrice, other, draft)

	from := 5000000.0
	page, err := index.Search(context.Background(), Query{
		Text:      "экскаватор",
		PriceFrom: &from,
		Sort:      enums.SortPriceAsc,
		Limit:     20,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := ids(page)
	want := []uuid.UUID{mid.ID, high.ID}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v got %v", want, got)
	}
	if page.Total != 2 {
		t.Fatalf("expected total 2, got %d", page.Total)
	}
}

func TestMemoryIndexPriceSortPutsMissingLast(t *testing.T) {
	a := newDoc("a", "", withPrice(200))
	b := newDoc("b", "")
	c := newDoc("c", "", withPrice(100))
	index := seedIndex(t, a, b, c)

	page, _ := index.Search(context.Background(), Query{Sort: enums.SortPriceAsc, Limit: 10})
	if got := ids(page); got[0] != c.ID || got[1] != a.ID || got[2] != b.ID {
		t.Fatalf("unexpected price_asc order %v", got)
	}
	page, _ = index.Search(context.Background(), Query{Sort: enums.SortPriceDesc, Limit: 10})
	if got := ids(page); got[0] != a.ID || got[1] != c.ID || got[2] != b.ID {
		t.Fatalf("unexpected price_desc order %v", got)
	}
}

func TestMemoryIndexYearDescAndNewest(t *testing.T) {
	old := newDoc("old", "", withYear(2010), createdAgo(1))
	recent := newDoc("recent", "", withYear(2022), createdAgo(48))
	unknown := newDoc("unknown", "", createdAgo(0))
	index := seedIndex(t, old, recent, unknown)

	page, _ := index.Search(context.Background(), Query{Sort: enums.SortYearDesc, Limit: 10})
	if got := ids(page); got[0] != recent.ID || got[1] != old.ID || got[2] != unknown.ID {
		t.Fatalf("unexpected year_desc order %v", got)
	}
	page, _ = index.Search(context.Background(), Query{Sort: enums.SortNewest, Limit: 10})
	if got := ids(page); got[0] != unknown.ID || got[1] != old.ID || got[2] != recent.ID {
		t.Fatalf("unexpected newest order %v", got)
	}
}

func TestMemoryIndexRelevanceRanksPromotedFirst(t *testing.T) {
	plain := newDoc("plain", "")
	highlight := newDoc("highlight", "", withBoost(0.3))
	top := newDoc("top", "", withBoost(1.5))
	vip := newDoc("vip", "", withBoost(2.0), createdAgo(240))
	index := seedIndex(t, plain, highlight, top, vip)

	page, _ := index.Search(context.Background(), Query{Limit: 10})
	got := ids(page)
	want := []uuid.UUID{vip.ID, top.ID, highlight.ID, plain.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %s got %s", i, want[i], got[i])
		}
	}
}

func TestTierBonusAppliesOnce(t *testing.T) {
	vip := newDoc("vip", "", withBoost(2.0))
	if got := tierBonus(vip); got != vipBonus {
		t.Fatalf("expected single VIP bonus %v, got %v", vipBonus, got)
	}
	want := vipBonus + 2.0*boostFactor + 1*freshnessFactor
	if got := promotionScore(vip); got != want {
		t.Fatalf("expected composite %v, got %v", want, got)
	}
}

func TestMemoryIndexFacetsAndPaging(t *testing.T) {
	catA := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	catB := uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	index := seedIndex(t,
		newDoc("1", "", withCategory(catA), createdAgo(1)),
		newDoc("2", "", withCategory(catA), createdAgo(2)),
		newDoc("3", "", withCategory(catB), createdAgo(3)),
		newDoc("4", "", withCategory(catB), withStatus(enums.ListingStatusArchived)),
	)

	page, err := index.Search(context.Background(), Query{Sort: enums.SortNewest, Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 3 || len(page.Documents) != 1 || page.Documents[0].Title != "2" {
		t.Fatalf("unexpected page total=%d docs=%v", page.Total, ids(page))
	}
	if len(page.Categories) != 2 || page.Categories[0].ID != catA.String() || page.Categories[0].Count != 2 {
		t.Fatalf("unexpected facets %+v", page.Categories)
	}

	page, _ = index.Search(context.Background(), Query{CategoryID: &catB, Limit: 10})
	if len(page.Categories) != 1 || page.Categories[0].ID != catB.String() {
		t.Fatalf("facets should count the filtered set only, got %+v", page.Categories)
	}

	page, _ = index.Search(context.Background(), Query{Offset: 10, Limit: 10})
	if page.Total != 3 || len(page.Documents) != 0 {
		t.Fatalf("offset past the end should return no documents")
	}
}
