package cooldown

import (
	"errors"
	"fmt"
	"time"

	"github.com/starbank/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service answers how long a user must still wait before repeating a gated
// action. Absence of a record is the normal "never done before" state.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a new cooldown service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// NewServiceWithClock creates a cooldown service with a custom time source.
func NewServiceWithClock(db *gorm.DB, now func() time.Time) *Service {
	return &Service{db: db, now: now}
}

// Remaining returns the whole seconds left before the action is allowed
// again, or 0 when it is allowed now.
func (s *Service) Remaining(userID int64, action string, windowSeconds int) (int, error) {
	return s.RemainingTx(s.db, userID, action, windowSeconds)
}

// RemainingTx is Remaining inside an existing transaction. Callers deciding
// whether to grant must call this under the user's lock so the answer is
// still true when they record.
func (s *Service) RemainingTx(tx *gorm.DB, userID int64, action string, windowSeconds int) (int, error) {
	var record models.ActionRecord
	err := tx.Where("user_id = ? AND action = ?", userID, action).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error finding action record: %w", err)
	}

	elapsed := s.now().Sub(record.OccurredAt)
	window := time.Duration(windowSeconds) * time.Second
	if elapsed >= window {
		return 0, nil
	}
	return int((window - elapsed) / time.Second), nil
}

// Record upserts "now" as the latest occurrence of the action for the user.
// Only the most recent timestamp per (user, action) is retained.
func (s *Service) Record(userID int64, action string) error {
	return s.RecordTx(s.db, userID, action)
}

// RecordTx is Record inside an existing transaction.
func (s *Service) RecordTx(tx *gorm.DB, userID int64, action string) error {
	record := models.ActionRecord{
		UserID:     userID,
		Action:     action,
		OccurredAt: s.now(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "action"}},
		DoUpdates: clause.AssignmentColumns([]string{"occurred_at"}),
	}).Create(&record).Error
}
