package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// OutboxEvent is a domain event committed alongside the row change that
// caused it. The publisher drains rows with a nil PublishedAt.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:outbox_event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:outbox_aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// NextAttemptExhausts reports whether one more failed attempt reaches max.
func (e OutboxEvent) NextAttemptExhausts(max int) bool {
	return e.AttemptCount+1 >= max
}
