package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/metrics"
)

const defaultReindexBatchSize = 200

// ListingSource loads listings with the relations BuildDocument reads.
type ListingSource interface {
	FindForIndex(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListPublishedPage(ctx context.Context, offset, limit int) ([]models.Listing, error)
}

// SyncService keeps the index equal to the set of PUBLISHED listings.
type SyncService struct {
	listings  ListingSource
	index     Index
	metrics   *metrics.SearchSyncMetrics
	logg      *logger.Logger
	batchSize int
	now       func() time.Time
}

type SyncServiceParams struct {
	Listings  ListingSource
	Index     Index
	Metrics   *metrics.SearchSyncMetrics
	Logger    *logger.Logger
	BatchSize int
	Now       func() time.Time
}

func NewSyncService(params SyncServiceParams) (*SyncService, error) {
	if params.Listings == nil {
		return nil, fmt.Errorf("listing source required")
	}
	if params.Index == nil {
		return nil, fmt.Errorf("search index required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReindexBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &SyncService{
		listings:  params.Listings,
		index:     params.Index,
		metrics:   params.Metrics,
		logg:      params.Logger,
		batchSize: batch,
		now:       now,
	}, nil
}

// SyncListingByID rebuilds the listing's document, or removes it when the
// listing is gone or no longer PUBLISHED.
func (s *SyncService) SyncListingByID(ctx context.Context, id uuid.UUID) error {
	listing, err := s.listings.FindForIndex(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.RemoveListing(ctx, id)
		}
		s.metrics.Observe(metrics.SearchOpSync, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing for index")
	}
	if listing.Status != enums.ListingStatusPublished {
		return s.RemoveListing(ctx, id)
	}

	doc := BuildDocument(listing, s.now().UTC())
	err = s.index.Upsert(ctx, doc)
	s.metrics.Observe(metrics.SearchOpSync, err)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeIndexUnavailable, err, "index listing").
			WithDetails(map[string]any{"listing_id": id.String()})
	}
	s.logg.Debug(s.logg.WithListingID(ctx, id.String()), "listing indexed")
	return nil
}

// RemoveListing deletes the listing's document. Deleting an absent document succeeds.
func (s *SyncService) RemoveListing(ctx context.Context, id uuid.UUID) error {
	err := s.index.Delete(ctx, id)
	s.metrics.Observe(metrics.SearchOpRemove, err)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeIndexUnavailable, err, "remove listing from index").
			WithDetails(map[string]any{"listing_id": id.String()})
	}
	s.logg.Debug(s.logg.WithListingID(ctx, id.String()), "listing removed from index")
	return nil
}

// ReindexAll rebuilds the index from scratch and returns the number of documents written.
func (s *SyncService) ReindexAll(ctx context.Context) (int, error) {
	count, err := s.reindex(ctx)
	s.metrics.Observe(metrics.SearchOpReindex, err)
	if err != nil {
		return count, err
	}
	s.metrics.SetReindexed(count)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"indexed": count}), "search reindex completed")
	return count, nil
}

func (s *SyncService) reindex(ctx context.Context) (int, error) {
	if err := s.index.Recreate(ctx); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeIndexUnavailable, err, "recreate index")
	}

	total := 0
	for offset := 0; ; offset += s.batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		page, err := s.listings.ListPublishedPage(ctx, offset, s.batchSize)
		if err != nil {
			return total, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "page published listings")
		}
		if len(page) == 0 {
			return total, nil
		}

		now := s.now().UTC()
		docs := make([]ListingDocument, 0, len(page))
		for i := range page {
			docs = append(docs, BuildDocument(&page[i], now))
		}
		if err := s.index.BulkUpsert(ctx, docs); err != nil {
			return total, pkgerrors.Wrap(pkgerrors.CodeIndexUnavailable, err, "bulk index listings").
				WithDetails(map[string]any{"offset": offset})
		}
		total += len(docs)
		if len(page) < s.batchSize {
			return total, nil
		}
	}
}
