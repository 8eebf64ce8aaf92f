package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a 1..5 rating left by the requester of a completed booking.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BookingID  uuid.UUID `gorm:"column:booking_id;type:uuid;not null;uniqueIndex:reviews_booking_id_key" json:"booking_id"`
	SkillID    uuid.UUID `gorm:"column:skill_id;type:uuid;not null;index" json:"skill_id"`
	ReviewerID uuid.UUID `gorm:"column:reviewer_id;type:uuid;not null" json:"reviewer_id"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null" json:"provider_id"`
	Rating     int       `gorm:"column:rating;not null" json:"rating"`
	Comment    *string   `gorm:"column:comment" json:"comment,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Review) TableName() string { return "reviews" }

func (r *Review) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
