package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/enums"
)

// LedgerEntry is one side of a credit transfer. Entries are written in
// spent/earned pairs and are never deleted; reversal flips Status.
type LedgerEntry struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FromUserID  uuid.UUID               `gorm:"column:from_user_id;type:uuid;not null;index" json:"from_user_id"`
	ToUserID    uuid.UUID               `gorm:"column:to_user_id;type:uuid;not null;index" json:"to_user_id"`
	SkillID     uuid.UUID               `gorm:"column:skill_id;type:uuid;not null" json:"skill_id"`
	BookingID   uuid.UUID               `gorm:"column:booking_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_booking_kind,priority:1" json:"booking_id"`
	Credits     int                     `gorm:"column:credits;not null" json:"credits"`
	Kind        enums.LedgerEntryKind   `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:ux_ledger_entries_booking_kind,priority:2" json:"kind"`
	Description string                  `gorm:"column:description;not null;default:''" json:"description"`
	Status      enums.LedgerEntryStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CancelledAt *time.Time              `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// LedgerEntryView is a ledger entry joined with its skill title for history reads.
type LedgerEntryView struct {
	LedgerEntry
	SkillTitle string `gorm:"column:skill_title" json:"skill_title"`
}
