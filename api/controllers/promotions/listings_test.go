package promotions

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/api/middleware"
	promotionsvc "github.com/texnika/texnika-backend/internal/promotions"
	"github.com/texnika/texnika-backend/pkg/auth"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

type stubPromoter struct {
	input  promotionsvc.ApplyPromotionInput
	result *promotionsvc.ApplyPromotionResult
	err    error
	calls  int
}

func (s *stubPromoter) ApplyPromotion(ctx context.Context, input promotionsvc.ApplyPromotionInput) (*promotionsvc.ApplyPromotionResult, error) {
	s.calls++
	s.input = input
	return s.result, s.err
}

func promotionRequest(t *testing.T, listingID, body string, identity *auth.Identity) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions/listings/"+listingID, strings.NewReader(body))
	ctx := req.Context()
	if identity != nil {
		ctx = middleware.WithIdentity(ctx, *identity)
	}
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("listingId", listingID)
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, routeCtx))
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestApplyToListingAcceptsTypeAlias(t *testing.T) {
	identity := auth.Identity{UserID: uuid.New(), Role: enums.UserRoleDealer}
	listingID := uuid.New()
	svc := &stubPromoter{result: &promotionsvc.ApplyPromotionResult{BoostScore: 1.5}}
	req := promotionRequest(t, listingID.String(), `{"type":"top","days":7}`, &identity)
	rec := httptest.NewRecorder()

	ApplyToListing(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.input.ListingID != listingID || svc.input.PlanCode != enums.PlanTop || svc.input.Days != 7 {
		t.Fatalf("unexpected input %+v", svc.input)
	}
	if svc.input.Actor.UserID != identity.UserID {
		t.Fatalf("actor not forwarded")
	}

	var envelope struct {
		Data struct {
			BoostScore float64 `json:"boostScore"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.BoostScore != 1.5 {
		t.Fatalf("unexpected boost %v", envelope.Data.BoostScore)
	}
}

func TestApplyToListingRejectsBadInput(t *testing.T) {
	identity := auth.Identity{UserID: uuid.New(), Role: enums.UserRoleUser}
	cases := []struct {
		name      string
		listingID string
		body      string
	}{
		{name: "bad listing id", listingID: "abc", body: `{"type":"VIP","days":3}`},
		{name: "zero days", listingID: uuid.NewString(), body: `{"type":"VIP","days":0}`},
		{name: "unknown tier", listingID: uuid.NewString(), body: `{"type":"GOLD","days":3}`},
		{name: "missing tier", listingID: uuid.NewString(), body: `{"days":3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubPromoter{}
			rec := httptest.NewRecorder()

			ApplyToListing(svc, testLogger())(rec, promotionRequest(t, tc.listingID, tc.body, &identity))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if svc.calls != 0 {
				t.Fatalf("service should not be called")
			}
		})
	}
}

func TestApplyToListingRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()

	ApplyToListing(&stubPromoter{}, testLogger())(rec, promotionRequest(t, uuid.NewString(), `{"type":"VIP","days":3}`, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestApplyToListingForbidden(t *testing.T) {
	identity := auth.Identity{UserID: uuid.New(), Role: enums.UserRoleUser}
	svc := &stubPromoter{err: pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another owner")}
	rec := httptest.NewRecorder()

	ApplyToListing(svc, testLogger())(rec, promotionRequest(t, uuid.NewString(), `{"planCode":"VIP","days":3}`, &identity))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}
