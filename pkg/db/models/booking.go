package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/enums"
)

// Booking is a request by one user to take a session of another user's skill.
// Credits are fixed when the booking is created.
type Booking struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SkillID       uuid.UUID           `gorm:"column:skill_id;type:uuid;not null;index" json:"skill_id"`
	RequesterID   uuid.UUID           `gorm:"column:requester_id;type:uuid;not null;index" json:"requester_id"`
	ProviderID    uuid.UUID           `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	Credits       int                 `gorm:"column:credits;not null" json:"credits"`
	ScheduledDate string              `gorm:"column:scheduled_date;type:varchar(10);not null" json:"scheduled_date"`
	ScheduledTime string              `gorm:"column:scheduled_time;type:varchar(5);not null" json:"scheduled_time"`
	Status        enums.BookingStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Reviewed      bool                `gorm:"column:reviewed;not null;default:false" json:"reviewed"`
	MeetingRef    *string             `gorm:"column:meeting_ref" json:"meeting_ref,omitempty"`
	DeclineReason *string             `gorm:"column:decline_reason" json:"decline_reason,omitempty"`
	CompletedAt   *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Version       int                 `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
