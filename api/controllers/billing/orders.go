package billing

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/api/middleware"
	"github.com/texnika/texnika-backend/api/responses"
	"github.com/texnika/texnika-backend/api/validators"
	billingsvc "github.com/texnika/texnika-backend/internal/billing"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// OrderService describes the order operations used by the HTTP controllers.
type OrderService interface {
	CreateOrder(ctx context.Context, input billingsvc.CreateOrderInput) (*billingsvc.OrderDTO, error)
	PayOrder(ctx context.Context, input billingsvc.PayOrderInput) (*billingsvc.OrderDTO, error)
	ListOrdersForUser(ctx context.Context, userID uuid.UUID) ([]billingsvc.OrderDTO, error)
}

type createOrderRequest struct {
	Items []billingsvc.OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

type payOrderRequest struct {
	Mode string `json:"mode"`
}

func OrdersCreate(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequireIdentity(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.CreateOrder(ctx, billingsvc.CreateOrderInput{Actor: actor, Items: req.Items})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func OrdersList(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequireIdentity(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orders, err := svc.ListOrdersForUser(ctx, actor.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if orders == nil {
			orders = []billingsvc.OrderDTO{}
		}
		responses.WriteSuccess(w, orders)
	}
}

// OrdersPay settles an order. An empty body pays from the wallet.
func OrdersPay(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequireIdentity(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req payOrderRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		mode, err := enums.ParsePaymentMode(req.Mode)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment mode"))
			return
		}

		logCtx := logg.WithOrderID(ctx, orderID.String())
		order, err := svc.PayOrder(logCtx, billingsvc.PayOrderInput{OrderID: orderID, Actor: actor, Mode: mode})
		if err != nil {
			responses.WriteError(logCtx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
