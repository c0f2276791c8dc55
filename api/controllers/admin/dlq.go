package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/api/responses"
	"github.com/texnika/texnika-backend/api/validators"
	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/outbox"
)

const (
	defaultDLQLimit = 50
	maxDLQLimit     = 500
)

// DLQReader lists outbox events the publisher gave up on.
type DLQReader interface {
	Recent(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
}

type dlqEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	EventID       uuid.UUID       `json:"eventId"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   uuid.UUID       `json:"aggregateId"`
	Payload       json.RawMessage `json:"payload"`
	ErrorReason   string          `json:"errorReason"`
	ErrorMessage  *string         `json:"errorMessage"`
	AttemptCount  int             `json:"attemptCount"`
	FailedAt      time.Time       `json:"failedAt"`
}

func OutboxDLQList(repo DLQReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dlq repository unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultDLQLimit, 1, maxDLQLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		filter := outbox.DLQFilter{Limit: limit}
		if raw := r.URL.Query().Get("eventType"); raw != "" {
			eventType, err := enums.ParseOutboxEventType(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid eventType"))
				return
			}
			filter.EventType = eventType
		}

		entries, err := repo.Recent(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dlq entries"))
			return
		}

		out := make([]dlqEntryResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, dlqEntryResponse{
				ID:            entry.ID,
				EventID:       entry.EventID,
				EventType:     string(entry.EventType),
				AggregateType: string(entry.AggregateType),
				AggregateID:   entry.AggregateID,
				Payload:       entry.Payload,
				ErrorReason:   string(entry.ErrorReason),
				ErrorMessage:  entry.ErrorMessage,
				AttemptCount:  entry.AttemptCount,
				FailedAt:      entry.FailedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
