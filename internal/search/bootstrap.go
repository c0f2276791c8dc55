package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/config"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/opensearch"
)

const startupPingTimeout = 3 * time.Second

// OpenIndex selects the index backend named by cfg.Backend. An unreachable
// cluster is logged and the index is returned anyway; only configuration
// errors fail.
func OpenIndex(ctx context.Context, cfg config.SearchConfig, logg *logger.Logger) (Index, error) {
	if cfg.UsesMemory() {
		if logg != nil {
			logg.Warn(ctx, "using in-process search index; documents are lost on restart")
		}
		return NewMemoryIndex(), nil
	}
	client, err := opensearch.NewClient(ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	index, err := NewOpenSearchIndex(client, cfg.Index)
	if err != nil {
		return nil, err
	}
	warnIfUnreachable(ctx, index, logg)
	return index, nil
}

func warnIfUnreachable(ctx context.Context, index Index, logg *logger.Logger) {
	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	err := index.Ping(pingCtx)
	if err == nil || logg == nil {
		return
	}
	logg.Warn(logg.WithField(ctx, "error", err.Error()), "search index unreachable at startup; search degrades until it recovers")
}

// Unavailable is an Index whose every call fails with INDEX_UNAVAILABLE.
// Binaries that must keep serving without search fall back to it.
func Unavailable(cause error) Index {
	return unavailableIndex{err: pkgerrors.Wrap(pkgerrors.CodeIndexUnavailable, cause, "search index not configured")}
}

type unavailableIndex struct {
	err error
}

func (u unavailableIndex) Exists(context.Context) (bool, error)                { return false, u.err }
func (u unavailableIndex) Ensure(context.Context) error                        { return u.err }
func (u unavailableIndex) Recreate(context.Context) error                      { return u.err }
func (u unavailableIndex) Upsert(context.Context, ListingDocument) error       { return u.err }
func (u unavailableIndex) Delete(context.Context, uuid.UUID) error             { return u.err }
func (u unavailableIndex) BulkUpsert(context.Context, []ListingDocument) error { return u.err }
func (u unavailableIndex) Search(context.Context, Query) (*Page, error)        { return nil, u.err }
func (u unavailableIndex) Ping(context.Context) error                          { return u.err }
