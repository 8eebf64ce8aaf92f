package models

import (
	"time"

	"github.com/google/uuid"
)

// UserBalance is the spendable credit balance of one user. Credits never go negative.
type UserBalance struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Credits   int       `gorm:"column:credits;not null;default:0" json:"credits"`
	Version   int       `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (UserBalance) TableName() string { return "user_balances" }
