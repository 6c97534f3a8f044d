package models

import (
	"time"
)

// Payment records a confirmed purchase of stars through the external payment
// collaborator. The unique ChargeID makes crediting idempotent against
// retried payment notifications.
type Payment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	ChargeID   string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"charge_id"`
	Stars      int64     `gorm:"not null" json:"stars"`
	AmountPaid int64     `gorm:"not null" json:"amount_paid"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
