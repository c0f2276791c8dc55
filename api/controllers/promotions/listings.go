package promotions

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/texnika/texnika-backend/api/middleware"
	"github.com/texnika/texnika-backend/api/responses"
	"github.com/texnika/texnika-backend/api/validators"
	promotionsvc "github.com/texnika/texnika-backend/internal/promotions"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// Promoter grants promotion tiers directly to listings.
type Promoter interface {
	ApplyPromotion(ctx context.Context, input promotionsvc.ApplyPromotionInput) (*promotionsvc.ApplyPromotionResult, error)
}

// applyPromotionRequest accepts the tier as "type" or "planCode".
type applyPromotionRequest struct {
	Type     string `json:"type"`
	PlanCode string `json:"planCode"`
	Days     int    `json:"days" validate:"required,min=1"`
}

func (r applyPromotionRequest) tier() string {
	if code := strings.TrimSpace(r.PlanCode); code != "" {
		return code
	}
	return strings.TrimSpace(r.Type)
}

func ApplyToListing(svc Promoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}
		actor, err := middleware.RequireIdentity(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		listingID, err := validators.ParsePathUUID(chi.URLParam(r, "listingId"), "listingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req applyPromotionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		code, err := enums.ParsePlanCode(strings.ToUpper(req.tier()))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promotion type").
				WithDetails(map[string]any{"type": req.tier()}))
			return
		}

		logCtx := logg.WithListingID(ctx, listingID.String())
		result, err := svc.ApplyPromotion(logCtx, promotionsvc.ApplyPromotionInput{
			ListingID: listingID,
			PlanCode:  code,
			Days:      req.Days,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(logCtx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
