package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Skill is a teachable offering with a finite number of session slots.
type Skill struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProviderID     uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	Title          string    `gorm:"column:title;not null" json:"title"`
	CreditsPerHour int       `gorm:"column:credits_per_hour;not null" json:"credits_per_hour"`
	AvailableSlots int       `gorm:"column:available_slots;not null;default:0" json:"available_slots"`
	Rating         float64   `gorm:"column:rating;type:numeric(2,1);not null;default:0" json:"rating"`
	ReviewCount    int       `gorm:"column:review_count;not null;default:0" json:"review_count"`
	TotalSessions  int       `gorm:"column:total_sessions;not null;default:0" json:"total_sessions"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Version        int       `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Skill) TableName() string { return "skills" }

func (s *Skill) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
