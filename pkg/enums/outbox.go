package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateBooking     OutboxAggregateType = "booking"
	AggregateLedgerEntry OutboxAggregateType = "ledger_entry"
	AggregateReview      OutboxAggregateType = "review"
)

func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateBooking, AggregateLedgerEntry, AggregateReview:
		return true
	}
	return false
}

// OutboxEventType names a domain event relayed through the outbox.
type OutboxEventType string

const (
	EventBookingCreated       OutboxEventType = "booking_created"
	EventBookingStatusChanged OutboxEventType = "booking_status_changed"
	EventCreditsTransferred   OutboxEventType = "credits_transferred"
	EventCreditsReversed      OutboxEventType = "credits_reversed"
	EventReviewSubmitted      OutboxEventType = "review_submitted"
)

// eventAggregates pins every event type to the one aggregate it may describe.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventBookingCreated:       AggregateBooking,
	EventBookingStatusChanged: AggregateBooking,
	EventCreditsTransferred:   AggregateLedgerEntry,
	EventCreditsReversed:      AggregateLedgerEntry,
	EventReviewSubmitted:      AggregateReview,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e is emitted for, or "" if e is unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	e := OutboxEventType(value)
	if !e.IsValid() {
		return "", fmt.Errorf("invalid event type %q", value)
	}
	return e, nil
}
