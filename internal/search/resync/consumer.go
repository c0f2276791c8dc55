package resync

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/outbox"
	"github.com/texnika/texnika-backend/pkg/outbox/payloads"
	"github.com/texnika/texnika-backend/pkg/outbox/registry"
)

const consumerName = "search-resync"

type listingSyncer interface {
	SyncListingByID(ctx context.Context, id uuid.UUID) error
}

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer applies listing.reindex_requested events to the search index.
type Consumer struct {
	syncer       listingSyncer
	manager      idempotencyChecker
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewConsumer(syncer listingSyncer, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if syncer == nil {
		return nil, fmt.Errorf("listing syncer required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		syncer:       syncer,
		manager:      manager,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run receives from the search subscription until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("search subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logCtx := c.logg.WithField(ctx, "message_id", msg.ID)
		if c.Handle(logCtx, msg.Attributes["event_type"], msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Handle processes one message body and reports whether it should be acked.
// Malformed messages are acked so they do not redeliver forever.
func (c *Consumer) Handle(ctx context.Context, eventType string, data []byte) bool {
	logCtx := c.logg.WithField(ctx, "event_type", eventType)
	if eventType != string(enums.EventListingReindexRequested) {
		c.logg.Debug(logCtx, "skipping unrelated event")
		return true
	}

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	decoded, err := registry.DecodePayload(enums.EventListingReindexRequested, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode reindex payload", err)
		return true
	}
	event, ok := decoded.(*payloads.ListingReindexRequested)
	if !ok {
		c.logg.Error(logCtx, "unexpected reindex payload type", fmt.Errorf("%T", decoded))
		return true
	}
	logCtx = c.logg.WithListingID(logCtx, event.ListingID.String())

	claimed, err := c.manager.Claim(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if !claimed {
		c.logg.Debug(logCtx, "event already processed")
		return true
	}

	if err := c.syncer.SyncListingByID(ctx, event.ListingID); err != nil {
		c.logg.Error(c.logg.WithFields(logCtx, map[string]any{"op": "sync", "reason": event.Reason}), "listing resync failed", err)
		if !pkgerrors.Retryable(err) {
			return true
		}
		if delErr := c.manager.Release(ctx, consumerName, eventID); delErr != nil {
			c.logg.Error(logCtx, "failed to clear idempotency mark", delErr)
		}
		return false
	}
	c.logg.Debug(logCtx, "listing resynced")
	return true
}
