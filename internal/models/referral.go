package models

import (
	"time"
)

// Referral is the edge between a referrer and the user they brought in. The
// unique index on ReferredID is the defense against crediting the same
// referred user twice, no matter how often the start event is retried.
type Referral struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReferrerID int64     `gorm:"index;not null" json:"referrer_id"`
	ReferredID int64     `gorm:"uniqueIndex;not null" json:"referred_id"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
