package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/timecredit-backend/pkg/config"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError signals the publisher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) error {
	return NonRetryableError{Err: err}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every booking-ledger event to the configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.BookingTopic == "" {
		return nil, errors.New("booking topic is required")
	}
	topic := cfg.BookingTopic
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventBookingCreated,
			AggregateType:  enums.AggregateBooking,
			PayloadFactory: func() any { return &payloads.BookingCreatedEvent{} },
		},
		{
			EventType:      enums.EventBookingStatusChanged,
			AggregateType:  enums.AggregateBooking,
			PayloadFactory: func() any { return &payloads.BookingStatusChangedEvent{} },
		},
		{
			EventType:      enums.EventCreditsTransferred,
			AggregateType:  enums.AggregateLedgerEntry,
			PayloadFactory: func() any { return &payloads.CreditsTransferredEvent{} },
		},
		{
			EventType:      enums.EventCreditsReversed,
			AggregateType:  enums.AggregateLedgerEntry,
			PayloadFactory: func() any { return &payloads.CreditsReversedEvent{} },
		},
		{
			EventType:      enums.EventReviewSubmitted,
			AggregateType:  enums.AggregateReview,
			PayloadFactory: func() any { return &payloads.ReviewSubmittedEvent{} },
		},
	} {
		desc.Topic = topic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve decodes the envelope and typed payload of an outbox row.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("event type %q not registered", row.EventType))
	}
	if desc.AggregateType != row.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("event %s expects aggregate %s, got %s", row.EventType, desc.AggregateType, row.AggregateType))
	}
	envelope, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
