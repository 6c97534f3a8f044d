package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/services/cooldown"
	"github.com/starbank/backend/internal/services/ledger"
	"github.com/starbank/backend/internal/services/payout"
	"github.com/starbank/backend/internal/utils"
	"gorm.io/gorm"
)

var (
	// ErrBelowMinimum is returned when the amount is under the configured
	// withdrawal minimum.
	ErrBelowMinimum = errors.New("amount below withdrawal minimum")

	// ErrDailyCapExceeded is returned when the request would push the user's
	// reserved daily total over the cap.
	ErrDailyCapExceeded = errors.New("daily withdrawal cap exceeded")

	// ErrPremiumRequired is returned when a non-premium user requests an
	// admin-approval withdrawal.
	ErrPremiumRequired = errors.New("premium required for admin-approval withdrawals")

	// ErrInvalidState is returned when acting on a request that is not
	// pending. Repeated admin commands are safe because of it.
	ErrInvalidState = errors.New("request is not pending")

	// ErrNotFound is returned when no request matches the id.
	ErrNotFound = errors.New("withdrawal request not found")
)

// CoolingDownError reports the seconds left in the withdrawal cooldown
// window.
type CoolingDownError struct {
	Remaining int
}

func (e *CoolingDownError) Error() string {
	return fmt.Sprintf("withdrawal cooling down for %d seconds", e.Remaining)
}

// Service owns the withdrawal request state machine: creation with balance,
// cap and cooldown checks, automatic settlement, and the admin decision path.
type Service struct {
	db      *gorm.DB
	ledger  *ledger.Service
	clock   *cooldown.Service
	gateway payout.Gateway
	cfg     config.WithdrawalConfig

	// exempt reports whether a user bypasses the daily cap and the premium
	// requirement. Wired to the admin allow-list.
	exempt func(userID int64) bool
}

// NewService creates a new withdrawal manager
func NewService(db *gorm.DB, ledgerSvc *ledger.Service, clock *cooldown.Service, gateway payout.Gateway, cfg config.WithdrawalConfig, exempt func(int64) bool) *Service {
	if exempt == nil {
		exempt = func(int64) bool { return false }
	}
	return &Service{db: db, ledger: ledgerSvc, clock: clock, gateway: gateway, cfg: cfg, exempt: exempt}
}

// Create validates and inserts a pending withdrawal request. The daily
// allowance is reserved immediately; the balance itself is debited at
// settlement, so the displayed balance still reflects pending requests.
func (s *Service) Create(userID, amount int64, kind models.WithdrawalKind) (*models.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	if amount < s.cfg.MinWithdraw {
		return nil, ErrBelowMinimum
	}

	isExempt := s.exempt(userID)

	var request *models.WithdrawalRequest
	err := s.ledger.WithUserLock(userID, func(tx *gorm.DB) error {
		wallet, err := s.ledger.GetOrCreateTx(tx, userID)
		if err != nil {
			return err
		}

		if amount > wallet.Balance {
			return ledger.ErrInsufficientBalance
		}
		if !isExempt && wallet.DailyWithdrawn+amount > s.cfg.DailyCap {
			return ErrDailyCapExceeded
		}
		if kind == models.WithdrawalKindAdmin && !isExempt && !wallet.Premium {
			return ErrPremiumRequired
		}

		// Cooldown gates only the automatic payout kind.
		if kind == models.WithdrawalKindAuto {
			remaining, err := s.clock.RemainingTx(tx, userID, models.ActionWithdraw, s.cfg.CooldownSeconds)
			if err != nil {
				return err
			}
			if remaining > 0 {
				return &CoolingDownError{Remaining: remaining}
			}
		}

		request = &models.WithdrawalRequest{
			UserID:    userID,
			Amount:    amount,
			Kind:      kind,
			Status:    models.WithdrawalStatusPending,
			Reference: utils.GenerateReference("WDR"),
		}
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("error creating withdrawal request: %w", err)
		}

		if err := s.ledger.AddDailyWithdrawnTx(tx, userID, amount); err != nil {
			return err
		}

		if kind == models.WithdrawalKindAuto {
			return s.clock.RecordTx(tx, userID, models.ActionWithdraw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Get returns a request by id.
func (s *Service) Get(requestID uint) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	err := s.db.First(&request, "id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding withdrawal request: %w", err)
	}
	return &request, nil
}

// ListByUser returns a user's requests, newest first.
func (s *Service) ListByUser(userID int64, limit int) ([]models.WithdrawalRequest, error) {
	var requests []models.WithdrawalRequest
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").
		Limit(limit).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("error listing withdrawal requests: %w", err)
	}
	return requests, nil
}

// PendingAutoPayouts returns pending automatic requests oldest first, the
// order the settlement worker drains them in.
func (s *Service) PendingAutoPayouts(limit int) ([]models.WithdrawalRequest, error) {
	var requests []models.WithdrawalRequest
	q := s.db.Where("status = ? AND kind = ?", models.WithdrawalStatusPending, models.WithdrawalKindAuto).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("error listing pending requests: %w", err)
	}
	return requests, nil
}

// SettleAuto drives a pending request to a terminal state. If the balance
// covers the amount the ledger is debited and the request approved, then the
// payout collaborator is invoked; a payout failure rolls the debit back and
// marks the request failed, keeping the daily reservation. A short balance
// rejects the request without any debit.
func (s *Service) SettleAuto(ctx context.Context, requestID uint) (*models.WithdrawalRequest, error) {
	return s.settle(ctx, requestID, false)
}

// AdminApprove performs the same debit-then-approve sequence as SettleAuto
// synchronously. A failed balance check leaves the request pending and
// returns ErrInsufficientBalance instead of rejecting it.
func (s *Service) AdminApprove(ctx context.Context, requestID uint) (*models.WithdrawalRequest, error) {
	return s.settle(ctx, requestID, true)
}

func (s *Service) settle(ctx context.Context, requestID uint, adminMode bool) (*models.WithdrawalRequest, error) {
	request, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return request, ErrInvalidState
	}

	userID := request.UserID
	approved := false

	err = s.ledger.WithUserLock(userID, func(tx *gorm.DB) error {
		// Re-read under the lock; the worker and an admin may race here.
		if err := tx.First(request, "id = ?", requestID).Error; err != nil {
			return fmt.Errorf("error finding withdrawal request: %w", err)
		}
		if request.Status.Terminal() {
			return ErrInvalidState
		}

		wallet, err := s.ledger.GetOrCreateTx(tx, userID)
		if err != nil {
			return err
		}

		if wallet.Balance < request.Amount {
			if adminMode {
				// The admin path surfaces the shortfall and leaves the
				// request pending for a later retry.
				return ledger.ErrInsufficientBalance
			}
			// The automatic path rejects. The daily reservation is kept:
			// the attempt consumed the user's allowance.
			return s.transition(tx, request, models.WithdrawalStatusRejected, "insufficient balance at settlement")
		}

		if _, err := s.ledger.DebitTx(tx, userID, request.Amount, models.EntryKindWithdrawal, request.Reference); err != nil {
			return err
		}
		if err := s.transition(tx, request, models.WithdrawalStatusApproved, ""); err != nil {
			return err
		}
		approved = true
		return nil
	})
	if err != nil {
		return request, err
	}
	if !approved {
		return request, nil
	}

	// Deliver the funds. The gateway call is the only long-running step and
	// carries its own bounded timeout through the context.
	if err := s.gateway.Payout(ctx, userID, request.Amount, request.Reference); err != nil {
		if failErr := s.failPayout(request, err); failErr != nil {
			return request, failErr
		}
		return request, fmt.Errorf("payout failed: %w", err)
	}

	return request, nil
}

// failPayout restores the debited balance and marks the request failed. The
// daily reservation stays consumed.
func (s *Service) failPayout(request *models.WithdrawalRequest, cause error) error {
	return s.ledger.WithUserLock(request.UserID, func(tx *gorm.DB) error {
		if _, err := s.ledger.RefundTx(tx, request.UserID, request.Amount, request.Reference); err != nil {
			return err
		}
		return s.transition(tx, request, models.WithdrawalStatusFailed, cause.Error())
	})
}

// AdminReject rejects a pending request and refunds the daily reservation
// made at creation, since no money moved.
func (s *Service) AdminReject(requestID uint) (*models.WithdrawalRequest, error) {
	request, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return request, ErrInvalidState
	}

	err = s.ledger.WithUserLock(request.UserID, func(tx *gorm.DB) error {
		if err := tx.First(request, "id = ?", requestID).Error; err != nil {
			return fmt.Errorf("error finding withdrawal request: %w", err)
		}
		if request.Status.Terminal() {
			return ErrInvalidState
		}

		if err := s.transition(tx, request, models.WithdrawalStatusRejected, "rejected by admin"); err != nil {
			return err
		}
		return s.ledger.ReverseDailyWithdrawnTx(tx, request.UserID, request.Amount)
	})
	if err != nil {
		return request, err
	}
	return request, nil
}

// transition moves a request to a terminal status and stamps processed_at.
func (s *Service) transition(tx *gorm.DB, request *models.WithdrawalRequest, status models.WithdrawalStatus, reason string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"processed_at": now,
	}
	if reason != "" {
		updates["fail_reason"] = reason
	}
	if err := tx.Model(request).Updates(updates).Error; err != nil {
		return fmt.Errorf("error updating withdrawal request: %w", err)
	}
	request.Status = status
	request.ProcessedAt = &now
	request.FailReason = reason
	return nil
}
