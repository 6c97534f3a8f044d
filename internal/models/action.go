package models

import (
	"time"
)

// Action kinds tracked for cooldown purposes.
const (
	ActionEarn     = "earn"
	ActionRefer    = "refer"
	ActionWithdraw = "withdraw"
)

// ActionRecord holds the most recent occurrence of an action kind for a user.
// One row per (user, action); upserted on every successful gated action.
type ActionRecord struct {
	UserID     int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Action     string    `gorm:"primaryKey;type:varchar(32)" json:"action"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
}
