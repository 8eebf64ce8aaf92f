package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/enums"
)

// OutboxEvent is a queued domain event. Rows are written in the same
// transaction as the change they describe and relayed by the publisher.
// Parked rows keep published_at empty with attempt_count at the ceiling.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:varchar(32);not null" json:"aggregate_type"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index" json:"aggregate_id"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	PublishedAt   *time.Time                `gorm:"column:published_at;index" json:"published_at,omitempty"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastError     *string                   `gorm:"column:last_error" json:"last_error,omitempty"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
