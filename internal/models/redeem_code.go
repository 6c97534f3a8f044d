package models

import (
	"time"
)

// RedeemCode is a voucher that credits a fixed amount to each first-time
// redeemer, up to MaxUses redemptions and an optional expiry.
type RedeemCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Amount    int64      `gorm:"not null" json:"amount"`
	MaxUses   int        `gorm:"not null;default:1" json:"max_uses"`
	UsedCount int        `gorm:"not null;default:0" json:"used_count"`
	Active    bool       `gorm:"not null;default:true" json:"active"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedBy int64      `gorm:"index" json:"created_by"`
	CreatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Expired reports whether the code's expiry instant has passed.
func (c *RedeemCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Redemption is the permanent (code, user) record that enforces at most one
// redemption per user even when MaxUses > 1.
type Redemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CodeID    uint      `gorm:"not null;uniqueIndex:idx_redemptions_code_user" json:"code_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_redemptions_code_user" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
