package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
	"github.com/texnika/texnika-backend/pkg/outbox/payloads"
)

func TestDecodePayloadListingReindex(t *testing.T) {
	listingID := uuid.New()
	data := json.RawMessage(`{"listing_id":"` + listingID.String() + `","reason":"promotion_expired"}`)

	decoded, err := DecodePayload(enums.EventListingReindexRequested, 1, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	event, ok := decoded.(*payloads.ListingReindexRequested)
	if !ok || event.ListingID != listingID || event.Reason != payloads.ReindexReasonPromotionExpired {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestDecodePayloadFailuresAreNonRetryable(t *testing.T) {
	cases := map[string]struct {
		eventType enums.OutboxEventType
		version   int
		data      string
	}{
		"missing listing": {enums.EventListingReindexRequested, 1, `{"reason":"x"}`},
		"unknown version": {enums.EventListingReindexRequested, 2, `{"listing_id":"` + uuid.NewString() + `"}`},
		"unknown type":    {"order.paid", 1, `{}`},
		"empty":           {enums.EventListingReindexRequested, 1, ` `},
		"not json":        {enums.EventListingReindexRequested, 1, `{"listing_id":`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePayload(tc.eventType, tc.version, json.RawMessage(tc.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsNonRetryable(err) {
				t.Fatalf("expected non-retryable, got %v", err)
			}
		})
	}
}

func TestIsNonRetryableThroughWrapping(t *testing.T) {
	err := fmt.Errorf("publish: %w", NewNonRetryableError(errors.New("bad row")))
	if !IsNonRetryable(err) {
		t.Fatal("expected wrapped non-retryable error to match")
	}
	if IsNonRetryable(errors.New("timeout")) {
		t.Fatal("plain errors are retryable")
	}
	if NewNonRetryableError(nil).Error() == "" {
		t.Fatal("nil cause still needs a message")
	}
}
