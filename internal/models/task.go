package models

import (
	"time"
)

// Task is an admin-created earning task. The Slug is derived from the title
// at creation time and is the identifier users complete against.
type Task struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Slug         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Title        string    `gorm:"type:varchar(255);not null" json:"title"`
	Reward       int64     `gorm:"not null" json:"reward"`
	NeedsReview  bool      `gorm:"not null;default:false" json:"needs_review"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedBy    int64     `gorm:"index" json:"created_by"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TaskCompletion records that a user completed a task. The unique (user, task)
// index makes task crediting idempotent. A completion for a review-gated task
// starts unverified with zero credit; admin approval credits it through the
// same reward path later.
type TaskCompletion struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     int64      `gorm:"not null;uniqueIndex:idx_completions_user_task" json:"user_id"`
	TaskSlug   string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_completions_user_task" json:"task_slug"`
	Amount     int64      `gorm:"not null;default:0" json:"amount"`
	Verified   bool       `gorm:"not null;default:false" json:"verified"`
	CreditedAt *time.Time `json:"credited_at"`
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
