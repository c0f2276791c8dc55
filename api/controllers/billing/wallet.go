package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/api/middleware"
	"github.com/texnika/texnika-backend/api/responses"
	"github.com/texnika/texnika-backend/api/validators"
	billingsvc "github.com/texnika/texnika-backend/internal/billing"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

const (
	defaultTransactionsLimit = 50
	maxTransactionsLimit     = 200
)

// WalletService describes the wallet operations used by the HTTP controllers.
type WalletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*billingsvc.WalletDTO, error)
	TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*billingsvc.WalletDTO, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]billingsvc.TransactionDTO, error)
}

type topUpRequest struct {
	AmountKZT int64 `json:"amountKzt" validate:"required,min=1"`
}

func WalletGet(svc WalletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		actor, err := middleware.RequireIdentity(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		wallet, err := svc.GetWallet(ctx, actor.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}

// WalletTopUp credits the caller's wallet. The upper bound is enforced by the service.
func WalletTopUp(svc WalletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		actor, err := middleware.RequireIdentity(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req topUpRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		wallet, err := svc.TopUp(ctx, actor.UserID, req.AmountKZT)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}

func WalletTransactions(svc WalletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		actor, err := middleware.RequireIdentity(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultTransactionsLimit, 1, maxTransactionsLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		txs, err := svc.ListTransactions(ctx, actor.UserID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if txs == nil {
			txs = []billingsvc.TransactionDTO{}
		}
		responses.WriteSuccess(w, txs)
	}
}
