package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/texnika/texnika-backend/pkg/db/models"
	"github.com/texnika/texnika-backend/pkg/enums"
)

const (
	dlqMessageLimit = 1024
	dlqDefaultLimit = 50
)

// DLQFilter narrows Recent. Zero values mean no filter and the default page.
type DLQFilter struct {
	EventType enums.OutboxEventType
	Limit     int
}

// DLQRepository stores events the publisher stopped retrying.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// Record inserts entry inside tx so the dead-letter row and the terminal
// mark on outbox_events commit together.
func (r *DLQRepository) Record(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("dlq record requires a transaction")
	}
	if entry.EventID == uuid.Nil {
		return errors.New("dlq record requires an event id")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		clipped := clipMessage(*entry.ErrorMessage, dlqMessageLimit)
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

// Recent lists dead letters newest first.
func (r *DLQRepository) Recent(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = dlqDefaultLimit
	}
	q := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	var rows []models.OutboxDLQ
	if err := q.Order("failed_at DESC").Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// clipMessage cuts s to at most max bytes without splitting a rune.
func clipMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
