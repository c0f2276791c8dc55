package billing

import (
	"context"
	"net/http"

	"github.com/texnika/texnika-backend/api/responses"
	billingsvc "github.com/texnika/texnika-backend/internal/billing"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// PlanCatalog lists the purchasable promotion plans.
type PlanCatalog interface {
	ListActivePlans(ctx context.Context) ([]billingsvc.PlanDTO, error)
}

func PlansList(svc PlanCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}
		plans, err := svc.ListActivePlans(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if plans == nil {
			plans = []billingsvc.PlanDTO{}
		}
		responses.WriteSuccess(w, plans)
	}
}
