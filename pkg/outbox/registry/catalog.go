// Package registry knows every outbox event type: which aggregate emits it,
// which payload versions exist and, for the publisher, which topic it goes to.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/texnika/texnika-backend/pkg/enums"
	"github.com/texnika/texnika-backend/pkg/outbox/payloads"
)

type eventSpec struct {
	aggregate enums.OutboxAggregateType
	// versions maps a payload version to a constructor for its zero value.
	versions map[int]func() payloads.Payload
	topic    func(topics) string
}

type topics struct {
	search string
}

var catalog = map[enums.OutboxEventType]eventSpec{
	enums.EventListingReindexRequested: {
		aggregate: enums.AggregateListing,
		versions: map[int]func() payloads.Payload{
			1: func() payloads.Payload { return &payloads.ListingReindexRequested{} },
		},
		topic: func(t topics) string { return t.search },
	},
}

// NonRetryableError marks a failure that no amount of retrying will fix.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err or anything it wraps is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

// DecodePayload decodes and validates data as the given event version.
// Unknown types or versions and invalid payloads are non-retryable.
func DecodePayload(eventType enums.OutboxEventType, version int, data json.RawMessage) (payloads.Payload, error) {
	spec, ok := catalog[eventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", eventType))
	}
	factory, ok := spec.versions[version]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("no decoder for %s@v%d", eventType, version))
	}
	if isEmptyJSON(data) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", eventType))
	}
	payload := factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", eventType, err))
	}
	if err := payload.Validate(); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("invalid %s payload: %w", eventType, err))
	}
	return payload, nil
}

func isEmptyJSON(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
