package models

import (
	"time"
)

// Wallet is the authoritative balance record for a single user. One row per
// user id, created lazily on first reference and never deleted.
type Wallet struct {
	UserID         int64     `gorm:"primaryKey" json:"user_id"`
	Balance        int64     `gorm:"not null;default:0" json:"balance"`
	TotalEarned    int64     `gorm:"not null;default:0" json:"total_earned"`
	Referrals      int64     `gorm:"not null;default:0" json:"referrals"`
	Premium        bool      `gorm:"not null;default:false" json:"premium"`
	TasksDone      int64     `gorm:"not null;default:0" json:"tasks_done"`
	DailyWithdrawn int64     `gorm:"not null;default:0" json:"daily_withdrawn"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// LedgerEntry records every balance movement. Entries are append-only; the
// wallet row stays the source of truth for the current balance.
type LedgerEntry struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Amount        int64     `gorm:"not null" json:"amount"` // negative for debits
	Kind          string    `gorm:"type:varchar(32);not null" json:"kind"`
	Reference     string    `gorm:"type:varchar(100)" json:"reference"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Ledger entry kinds.
const (
	EntryKindEarn       = "earn"
	EntryKindReferral   = "referral"
	EntryKindTask       = "task"
	EntryKindPurchase   = "purchase"
	EntryKindRedeem     = "redeem"
	EntryKindWithdrawal = "withdrawal"
	EntryKindRefund     = "refund"
	EntryKindBonus      = "bonus"
)
