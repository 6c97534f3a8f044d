package models

import (
	"time"
)

// WithdrawalKind selects how a request reaches a terminal state.
type WithdrawalKind string

const (
	// WithdrawalKindAuto is settled by the background settlement worker.
	WithdrawalKindAuto WithdrawalKind = "auto_payout"
	// WithdrawalKindAdmin requires an explicit administrator decision.
	WithdrawalKindAdmin WithdrawalKind = "admin_approval"
)

// WithdrawalStatus is the request state. Transitions are one-directional:
// pending -> approved | rejected | failed. No request leaves a terminal state.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
	WithdrawalStatusFailed   WithdrawalStatus = "failed"
)

// Terminal reports whether no further transition is permitted.
func (s WithdrawalStatus) Terminal() bool {
	return s != WithdrawalStatusPending
}

// WithdrawalRequest is a single withdrawal through its lifecycle. The balance
// is debited at settlement, not at creation; the daily allowance is reserved
// at creation.
type WithdrawalRequest struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      int64            `gorm:"index;not null" json:"user_id"`
	Amount      int64            `gorm:"not null" json:"amount"`
	Kind        WithdrawalKind   `gorm:"type:varchar(20);not null;default:'auto_payout'" json:"kind"`
	Status      WithdrawalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Reference   string           `gorm:"type:varchar(100)" json:"reference"`
	FailReason  string           `gorm:"type:text" json:"fail_reason,omitempty"`
	CreatedAt   time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ProcessedAt *time.Time       `json:"processed_at"`
}
