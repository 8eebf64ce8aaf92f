package bookings

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	DeclineReasonNoCapacity          = "no_capacity"
	DeclineReasonMissingRecords      = "missing_related_records"
	DeclineReasonInsufficientCredits = "insufficient_credits"
	CancelReasonExpired              = "expired"
)

// CreateBookingInput carries a booking request. Credits default to the
// skill's hourly price when zero. Confirmed skips the pending step and only
// checks capacity.
type CreateBookingInput struct {
	SkillID       uuid.UUID
	RequesterID   uuid.UUID
	ScheduledDate string
	ScheduledTime string
	Credits       int
	MeetingRef    *string
	Confirmed     bool
}

// TransitionContext describes who asked for a transition and why. When
// ExpectedFrom is set the transition only applies from that status.
type TransitionContext struct {
	ActorID      uuid.UUID
	Reason       string
	Description  string
	ExpectedFrom enums.BookingStatus
}

// BookingChange is published to in-process observers after a transition commits.
type BookingChange struct {
	BookingID   uuid.UUID
	SkillID     uuid.UUID
	RequesterID uuid.UUID
	ProviderID  uuid.UUID
	Credits     int
	From        enums.BookingStatus
	To          enums.BookingStatus
	Reason      string
	At          time.Time
}

// BookingView is a booking joined with its skill title for list reads.
type BookingView struct {
	models.Booking
	SkillTitle string `gorm:"column:skill_title" json:"skill_title"`
}

// ListFilter narrows ListForUser. A nil Status returns every status.
type ListFilter struct {
	Role   enums.BookingRole
	Status *enums.BookingStatus
}

// ListResult is one page of bookings.
type ListResult struct {
	Bookings   []BookingView `json:"bookings"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
