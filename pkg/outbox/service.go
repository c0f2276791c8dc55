package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/outbox/payloads"
)

const listingEventVersion = 1

// Event is a domain change to be published after its transaction commits.
type Event struct {
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Version       int
	Actor         *ActorRef
	Payload       payloads.Payload
	OccurredAt    time.Time
}

type inserter interface {
	Insert(tx *gorm.DB, event models.OutboxEvent) error
}

// Service appends events to the outbox table.
type Service struct {
	repo  inserter
	logg  *logger.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return newService(repo, logg)
}

func newService(repo inserter, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now, newID: uuid.New}
}

// Enqueue stores ev inside tx. The row only becomes visible to the
// publisher if tx commits.
func (s *Service) Enqueue(ctx context.Context, tx *gorm.DB, ev Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ev.Payload == nil {
		return fmt.Errorf("%s: payload required", ev.Type)
	}
	if err := ev.Payload.Validate(); err != nil {
		return fmt.Errorf("%s: %w", ev.Type, err)
	}
	row, eventID, err := s.toRow(ev)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx.WithContext(ctx), row); err != nil {
		return fmt.Errorf("insert outbox %s: %w", ev.Type, err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     eventID,
			"event_type":   ev.Type,
			"aggregate_id": ev.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

func (s *Service) toRow(ev Event) (models.OutboxEvent, string, error) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return models.OutboxEvent{}, "", fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	eventID := s.newID()
	body, err := json.Marshal(PayloadEnvelope{
		Version:    ev.Version,
		EventID:    eventID.String(),
		OccurredAt: occurred.UTC(),
		Actor:      ev.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, "", fmt.Errorf("marshal %s envelope: %w", ev.Type, err)
	}
	return models.OutboxEvent{
		ID:            eventID,
		EventType:     ev.Type,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		Payload:       body,
	}, eventID.String(), nil
}

// RequestListingReindex queues a resync of one listing's search document.
func (s *Service) RequestListingReindex(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, reason string, actor *ActorRef) error {
	return s.Enqueue(ctx, tx, Event{
		Type:          enums.EventListingReindexRequested,
		AggregateType: enums.AggregateListing,
		AggregateID:   listingID,
		Version:       listingEventVersion,
		Actor:         actor,
		Payload:       payloads.ListingReindexRequested{ListingID: listingID, Reason: reason},
	})
}
