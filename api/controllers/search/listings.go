package search

import (
	"context"
	"net/http"
	"strings"

	"github.com/texnika/texnika-backend/api/responses"
	"github.com/texnika/texnika-backend/api/validators"
	searchsvc "github.com/texnika/texnika-backend/internal/search"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
)

// ListingSearcher runs ranked listing queries.
type ListingSearcher interface {
	SearchListings(ctx context.Context, input searchsvc.ListingQuery) (*searchsvc.SearchResult, error)
}

// SearchListings serves the public catalogue search.
func SearchListings(svc ListingSearcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "search service unavailable"))
			return
		}

		query, err := parseListingQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.SearchListings(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseListingQuery(r *http.Request) (searchsvc.ListingQuery, error) {
	var (
		query searchsvc.ListingQuery
		err   error
	)
	query.Q = strings.TrimSpace(r.URL.Query().Get("q"))
	query.Sort = strings.TrimSpace(r.URL.Query().Get("sort"))

	if query.CategoryID, err = validators.ParseQueryUUID(r, "categoryId"); err != nil {
		return query, err
	}
	if query.CityID, err = validators.ParseQueryUUID(r, "cityId"); err != nil {
		return query, err
	}
	if query.RegionID, err = validators.ParseQueryUUID(r, "regionId"); err != nil {
		return query, err
	}
	if query.DealerID, err = validators.ParseQueryUUID(r, "dealerId"); err != nil {
		return query, err
	}
	if query.HasMedia, err = validators.ParseQueryBool(r, "hasMedia"); err != nil {
		return query, err
	}
	if query.PriceFrom, err = validators.ParseQueryFloat(r, "priceFrom"); err != nil {
		return query, err
	}
	if query.PriceTo, err = validators.ParseQueryFloat(r, "priceTo"); err != nil {
		return query, err
	}
	if query.YearFrom, err = validators.ParseQueryOptionalInt(r, "yearFrom"); err != nil {
		return query, err
	}
	if query.YearTo, err = validators.ParseQueryOptionalInt(r, "yearTo"); err != nil {
		return query, err
	}
	if query.Limit, err = validators.ParseQueryOptionalInt(r, "limit"); err != nil {
		return query, err
	}
	if query.Offset, err = validators.ParseQueryOptionalInt(r, "offset"); err != nil {
		return query, err
	}
	return query, nil
}
