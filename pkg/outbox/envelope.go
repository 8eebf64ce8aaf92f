package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/timecredit-backend/pkg/enums"
)

// EnvelopeVersion is the newest envelope layout this build writes and reads.
const EnvelopeVersion = 1

// ActorRef identifies the user whose request produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"user_id"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// verbatim as the message body. Data holds the event-specific payload.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type,omitempty"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type,omitempty"`
	AggregateID   uuid.UUID                 `json:"aggregate_id,omitempty"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// Actor builds an ActorRef, or nil when id is unset.
func Actor(id uuid.UUID) *ActorRef {
	if id == uuid.Nil {
		return nil
	}
	return &ActorRef{UserID: id}
}

// DecodeEnvelope parses a stored payload. Envelopes written by a newer build
// or without an event id are rejected.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if env.EventID == "" {
		return PayloadEnvelope{}, errors.New("envelope missing event id")
	}
	return env, nil
}
