package billing

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/api/responses"
	"github.com/texnika/texnika-backend/api/validators"
	billingsvc "github.com/texnika/texnika-backend/internal/billing"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// WebhookHandler applies payment provider callbacks.
type WebhookHandler interface {
	HandleMockWebhook(ctx context.Context, input billingsvc.WebhookInput) (*billingsvc.OrderDTO, error)
}

type webhookRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
	Status  string    `json:"status" validate:"required"`
}

// MockPaymentWebhook is the provider-neutral callback used by the card flow.
func MockPaymentWebhook(svc WebhookHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req webhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
				WithDetails(map[string]any{"status": req.Status}))
			return
		}

		logCtx := logg.WithOrderID(ctx, req.OrderID.String())
		order, err := svc.HandleMockWebhook(logCtx, billingsvc.WebhookInput{OrderID: req.OrderID, Status: status})
		if err != nil {
			responses.WriteError(logCtx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
