package payloads

import (
	"errors"

	"github.com/google/uuid"
)

// Payload is the typed body of an outbox event.
type Payload interface {
	Validate() error
}

// Reasons attached to listing reindex requests. They are informational only.
const (
	ReindexReasonPromotionExpired = "promotion_expired"
	ReindexReasonPromotionApplied = "promotion_applied"
	ReindexReasonOrderPaid        = "order_paid"
	ReindexReasonStatusChanged    = "status_changed"
	ReindexReasonFreshness        = "freshness_refresh"
)

// ListingReindexRequested asks the search worker to rebuild one listing document.
// The worker reads current listing state, so the payload carries no snapshot.
type ListingReindexRequested struct {
	ListingID uuid.UUID `json:"listing_id"`
	Reason    string    `json:"reason,omitempty"`
}

func (p ListingReindexRequested) Validate() error {
	if p.ListingID == uuid.Nil {
		return errors.New("listing_id is required")
	}
	return nil
}
