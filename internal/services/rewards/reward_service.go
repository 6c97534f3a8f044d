package rewards

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gosimple/slug"
	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/services/cooldown"
	"github.com/starbank/backend/internal/services/ledger"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyCompleted is returned when the user already completed and was
	// credited for a task.
	ErrAlreadyCompleted = errors.New("task already completed")

	// ErrDuplicatePayment is returned when a payment notification is retried
	// with a charge id that was already credited.
	ErrDuplicatePayment = errors.New("payment already recorded")

	// ErrTaskNotFound is returned when no active task matches the slug.
	ErrTaskNotFound = errors.New("task not found")
)

// CooldownError reports how long the user must still wait before the gated
// action is allowed again.
type CooldownError struct {
	Remaining int // seconds
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on cooldown for %d seconds", e.Remaining)
}

// Service is the single entry point that credits the ledger for earning
// actions, referrals, task completions and purchases.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	clock  *cooldown.Service
	cfg    config.RewardsConfig
}

// NewService creates a new reward dispatcher
func NewService(db *gorm.DB, ledgerSvc *ledger.Service, clock *cooldown.Service, cfg config.RewardsConfig) *Service {
	return &Service{db: db, ledger: ledgerSvc, clock: clock, cfg: cfg}
}

// GrantEarn credits a bounded random reward for an earn action, gated by the
// earn cooldown. Returns the granted amount and the updated wallet.
func (s *Service) GrantEarn(userID int64) (int64, *models.Wallet, error) {
	amount := s.rollEarnReward()

	var wallet *models.Wallet
	// The cooldown check lives inside the user lock: two simultaneous
	// requests must not both see an open window before either records.
	err := s.ledger.WithUserLock(userID, func(tx *gorm.DB) error {
		remaining, err := s.clock.RemainingTx(tx, userID, models.ActionEarn, s.cfg.EarnCooldownSeconds)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return &CooldownError{Remaining: remaining}
		}

		wallet, err = s.ledger.CreditTx(tx, userID, amount, models.EntryKindEarn, "")
		if err != nil {
			return err
		}
		if err := s.ledger.IncrementTasksDoneTx(tx, userID); err != nil {
			return err
		}
		return s.clock.RecordTx(tx, userID, models.ActionEarn)
	})
	if err != nil {
		return 0, nil, err
	}
	wallet.TasksDone++
	return amount, wallet, nil
}

func (s *Service) rollEarnReward() int64 {
	min, max := s.cfg.EarnRewardMin, s.cfg.EarnRewardMax
	if max <= min {
		return min
	}
	return min + rand.Int63n(max-min+1)
}

// GrantReferral credits the referrer a fixed amount for bringing in a new
// user. A self-referral, or a new user whose referral edge already exists, is
// a silent no-op: the granted amount is zero and no error is returned.
func (s *Service) GrantReferral(referrerID, newUserID int64) (int64, error) {
	if referrerID == newUserID {
		return 0, nil
	}

	granted := false
	// Both the existing-edge check and the cooldown check run under the
	// referrer's lock so a retried start event cannot slip past either.
	err := s.ledger.WithUserLock(referrerID, func(tx *gorm.DB) error {
		var existing models.Referral
		err := tx.Where("referred_id = ?", newUserID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("error finding referral: %w", err)
		}

		remaining, err := s.clock.RemainingTx(tx, referrerID, models.ActionRefer, s.cfg.ReferralCooldownSecs)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return &CooldownError{Remaining: remaining}
		}

		edge := models.Referral{ReferrerID: referrerID, ReferredID: newUserID}
		if err := tx.Create(&edge).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the race to another start event for the same new
				// user; nothing to grant.
				return nil
			}
			return fmt.Errorf("error creating referral: %w", err)
		}

		if _, err := s.ledger.CreditTx(tx, referrerID, s.cfg.ReferralReward, models.EntryKindReferral, ""); err != nil {
			return err
		}
		if err := s.ledger.IncrementReferralsTx(tx, referrerID); err != nil {
			return err
		}
		if err := s.clock.RecordTx(tx, referrerID, models.ActionRefer); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !granted {
		return 0, nil
	}
	return s.cfg.ReferralReward, nil
}

// CreateTask registers an admin-created task. The slug derived from the
// title becomes the task's identifier.
func (s *Service) CreateTask(title string, reward int64, needsReview bool, createdBy int64) (*models.Task, error) {
	if reward <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	task := models.Task{
		Slug:        slug.Make(title),
		Title:       title,
		Reward:      reward,
		NeedsReview: needsReview,
		Active:      true,
		CreatedBy:   createdBy,
	}
	if err := s.db.Create(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("task %q already exists", task.Slug)
		}
		return nil, fmt.Errorf("error creating task: %w", err)
	}
	return &task, nil
}

// ListTasks returns all active tasks.
func (s *Service) ListTasks() ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.Where("active = ?", true).Order("created_at").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	return tasks, nil
}

// SubmitTask records a user's completion of a task. Review-gated tasks are
// stored unverified with zero credit until an admin approves them; the rest
// credit immediately. Returns the amount credited now.
func (s *Service) SubmitTask(userID int64, taskSlug string) (int64, error) {
	var task models.Task
	err := s.db.Where("slug = ? AND active = ?", taskSlug, true).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrTaskNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("error finding task: %w", err)
	}

	if task.NeedsReview {
		completion := models.TaskCompletion{UserID: userID, TaskSlug: task.Slug}
		if err := s.db.Create(&completion).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return 0, ErrAlreadyCompleted
			}
			return 0, fmt.Errorf("error creating task completion: %w", err)
		}
		return 0, nil
	}

	if err := s.GrantTask(userID, task.Slug, task.Reward); err != nil {
		return 0, err
	}
	return task.Reward, nil
}

// ApproveTask credits a previously submitted, review-gated completion. Safe
// to retry: a second approval fails with ErrAlreadyCompleted and changes
// nothing.
func (s *Service) ApproveTask(userID int64, taskSlug string) (int64, error) {
	var task models.Task
	err := s.db.Where("slug = ?", taskSlug).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrTaskNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("error finding task: %w", err)
	}

	if err := s.GrantTask(userID, task.Slug, task.Reward); err != nil {
		return 0, err
	}
	return task.Reward, nil
}

// GrantTask is the single credit path for task completions. An unverified
// completion is upgraded in place; a verified one fails with
// ErrAlreadyCompleted.
func (s *Service) GrantTask(userID int64, taskSlug string, amount int64) error {
	return s.ledger.WithUserLock(userID, func(tx *gorm.DB) error {
		now := time.Now()

		var completion models.TaskCompletion
		err := tx.Where("user_id = ? AND task_slug = ?", userID, taskSlug).First(&completion).Error
		switch {
		case err == nil:
			if completion.Verified {
				return ErrAlreadyCompleted
			}
			if err := tx.Model(&completion).Updates(map[string]interface{}{
				"amount":      amount,
				"verified":    true,
				"credited_at": now,
			}).Error; err != nil {
				return fmt.Errorf("error updating task completion: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			completion = models.TaskCompletion{
				UserID:     userID,
				TaskSlug:   taskSlug,
				Amount:     amount,
				Verified:   true,
				CreditedAt: &now,
			}
			if err := tx.Create(&completion).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyCompleted
				}
				return fmt.Errorf("error creating task completion: %w", err)
			}
		default:
			return fmt.Errorf("error finding task completion: %w", err)
		}

		if _, err := s.ledger.CreditTx(tx, userID, amount, models.EntryKindTask, taskSlug); err != nil {
			return err
		}
		return s.ledger.IncrementTasksDoneTx(tx, userID)
	})
}

// GrantPurchase credits stars already paid for through the external payment
// collaborator. Crediting is idempotent on the charge id.
func (s *Service) GrantPurchase(userID, stars, amountPaid int64, chargeID string) (*models.Wallet, error) {
	if chargeID == "" {
		return nil, errors.New("charge id is required")
	}

	var wallet *models.Wallet
	err := s.ledger.WithUserLock(userID, func(tx *gorm.DB) error {
		var existing models.Payment
		err := tx.Where("charge_id = ?", chargeID).First(&existing).Error
		if err == nil {
			return ErrDuplicatePayment
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("error finding payment: %w", err)
		}

		payment := models.Payment{
			UserID:     userID,
			ChargeID:   chargeID,
			Stars:      stars,
			AmountPaid: amountPaid,
		}
		if err := tx.Create(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePayment
			}
			return fmt.Errorf("error creating payment: %w", err)
		}

		wallet, err = s.ledger.CreditTx(tx, userID, stars, models.EntryKindPurchase, chargeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}
