package admin

import (
	"context"
	"net/http"

	"github.com/texnika/texnika-backend/api/responses"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// Reindexer rebuilds the listing search index from the database.
type Reindexer interface {
	ReindexAll(ctx context.Context) (int, error)
}

type reindexResponse struct {
	Indexed int `json:"indexed"`
}

func SearchReindex(svc Reindexer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "search sync unavailable"))
			return
		}
		indexed, err := svc.ReindexAll(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(logg.WithField(ctx, "indexed", indexed), "search reindex completed")
		responses.WriteSuccess(w, reindexResponse{Indexed: indexed})
	}
}
