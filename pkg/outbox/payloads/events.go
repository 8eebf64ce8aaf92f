package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/timecredit-backend/pkg/enums"
)

// BookingCreatedEvent is emitted when a booking request is recorded.
type BookingCreatedEvent struct {
	BookingID     uuid.UUID           `json:"booking_id"`
	SkillID       uuid.UUID           `json:"skill_id"`
	RequesterID   uuid.UUID           `json:"requester_id"`
	ProviderID    uuid.UUID           `json:"provider_id"`
	Credits       int                 `json:"credits"`
	Status        enums.BookingStatus `json:"status"`
	ScheduledDate string              `json:"scheduled_date"`
	ScheduledTime string              `json:"scheduled_time"`
}

// BookingStatusChangedEvent is emitted for every committed transition.
type BookingStatusChangedEvent struct {
	BookingID     uuid.UUID           `json:"booking_id"`
	SkillID       uuid.UUID           `json:"skill_id"`
	RequesterID   uuid.UUID           `json:"requester_id"`
	ProviderID    uuid.UUID           `json:"provider_id"`
	From          enums.BookingStatus `json:"from"`
	To            enums.BookingStatus `json:"to"`
	Reason        string              `json:"reason,omitempty"`
	ChangedAt     time.Time           `json:"changed_at"`
	DeclineReason *string             `json:"decline_reason,omitempty"`
}

// CreditsTransferredEvent describes a committed spent/earned pair.
type CreditsTransferredEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	SkillID       uuid.UUID `json:"skill_id"`
	FromUserID    uuid.UUID `json:"from_user_id"`
	ToUserID      uuid.UUID `json:"to_user_id"`
	Credits       int       `json:"credits"`
	SpentEntryID  uuid.UUID `json:"spent_entry_id"`
	EarnedEntryID uuid.UUID `json:"earned_entry_id"`
}

// CreditsReversedEvent describes a reversed pair; credits flow back to FromUserID.
type CreditsReversedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	FromUserID    uuid.UUID `json:"from_user_id"`
	ToUserID      uuid.UUID `json:"to_user_id"`
	Credits       int       `json:"credits"`
	SpentEntryID  uuid.UUID `json:"spent_entry_id"`
	EarnedEntryID uuid.UUID `json:"earned_entry_id"`
	ReversedAt    time.Time `json:"reversed_at"`
}

// ReviewSubmittedEvent carries the refreshed aggregate after a review.
type ReviewSubmittedEvent struct {
	ReviewID    uuid.UUID `json:"review_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	SkillID     uuid.UUID `json:"skill_id"`
	Rating      int       `json:"rating"`
	SkillRating float64   `json:"skill_rating"`
	ReviewCount int       `json:"review_count"`
}
