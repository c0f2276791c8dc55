package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	searchsvc "github.com/texnika/texnika-backend/internal/search"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

type stubListingSearcher struct {
	query  searchsvc.ListingQuery
	result *searchsvc.SearchResult
	err    error
	calls  int
}

func (s *stubListingSearcher) SearchListings(ctx context.Context, input searchsvc.ListingQuery) (*searchsvc.SearchResult, error) {
	s.calls++
	s.query = input
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestSearchListingsParsesFilters(t *testing.T) {
	categoryID := uuid.New()
	svc := &stubListingSearcher{result: &searchsvc.SearchResult{
		Items:  []searchsvc.ListingHit{{ID: uuid.New(), Title: "Komatsu PC200", BoostScore: 2}},
		Total:  1,
		Limit:  10,
		Offset: 5,
		Facets: searchsvc.Facets{Categories: []searchsvc.FacetBucket{{ID: categoryID.String(), Count: 1}}},
	}}

	target := "/api/v1/search/listings?q=komatsu&categoryId=" + categoryID.String() +
		"&priceFrom=1000&priceTo=5000.5&yearFrom=2015&hasMedia=true&sort=price_asc&limit=10&offset=5"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()

	SearchListings(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	q := svc.query
	if q.Q != "komatsu" || q.Sort != "price_asc" || !q.HasMedia {
		t.Fatalf("unexpected query %+v", q)
	}
	if q.CategoryID == nil || *q.CategoryID != categoryID {
		t.Fatalf("category filter not parsed: %v", q.CategoryID)
	}
	if q.PriceFrom == nil || *q.PriceFrom != 1000 || q.PriceTo == nil || *q.PriceTo != 5000.5 {
		t.Fatalf("price range not parsed: %v %v", q.PriceFrom, q.PriceTo)
	}
	if q.YearFrom == nil || *q.YearFrom != 2015 || q.YearTo != nil {
		t.Fatalf("year range not parsed: %v %v", q.YearFrom, q.YearTo)
	}
	if q.Limit == nil || *q.Limit != 10 || q.Offset == nil || *q.Offset != 5 {
		t.Fatalf("paging not parsed: %v %v", q.Limit, q.Offset)
	}

	var envelope struct {
		Data struct {
			Items  []map[string]any `json:"items"`
			Total  int              `json:"total"`
			Facets struct {
				Categories []struct {
					ID    string `json:"id"`
					Count int    `json:"count"`
				} `json:"categories"`
			} `json:"facets"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Total != 1 || len(envelope.Data.Items) != 1 {
		t.Fatalf("unexpected body %+v", envelope.Data)
	}
	if len(envelope.Data.Facets.Categories) != 1 || envelope.Data.Facets.Categories[0].ID != categoryID.String() {
		t.Fatalf("unexpected facets %+v", envelope.Data.Facets)
	}
}

func TestSearchListingsRejectsMalformedParams(t *testing.T) {
	cases := []string{
		"categoryId=not-a-uuid",
		"priceFrom=abc",
		"yearTo=twenty",
		"hasMedia=maybe",
		"limit=ten",
	}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			svc := &stubListingSearcher{result: &searchsvc.SearchResult{}}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/search/listings?"+raw, nil)
			rec := httptest.NewRecorder()

			SearchListings(svc, testLogger())(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if svc.calls != 0 {
				t.Fatalf("service should not be called on bad input")
			}
		})
	}
}

func TestSearchListingsPropagatesValidationError(t *testing.T) {
	svc := &stubListingSearcher{err: pkgerrors.New(pkgerrors.CodeValidation, "invalid sort option")}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/listings?sort=cheapest", nil)
	rec := httptest.NewRecorder()

	SearchListings(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSearchListingsUnexpectedErrorIsInternal(t *testing.T) {
	svc := &stubListingSearcher{err: errors.New("boom")}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/listings", nil)
	rec := httptest.NewRecorder()

	SearchListings(svc, testLogger())(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
