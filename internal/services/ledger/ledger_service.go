package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/starbank/backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientBalance is returned when a debit would take the wallet
	// below zero at the moment of execution.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned for zero or negative mutation amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Service is the single owner of wallet mutation. Every read-modify-write on
// a wallet runs under that user's lock so that balance and cap checks are
// never stale at the moment of commit.
type Service struct {
	db    *gorm.DB
	locks sync.Map // userID -> *sync.Mutex
}

// NewService creates a new ledger service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WithUserLock serializes fn against all other wallet mutation for the same
// user and runs it inside a database transaction. Callers that need
// check-then-act semantics (balance checks, cap checks) go through here.
func (s *Service) WithUserLock(userID int64, fn func(tx *gorm.DB) error) error {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()
	return s.db.Transaction(fn)
}

// GetOrCreate gets a user's wallet or creates a zeroed one if it doesn't exist
func (s *Service) GetOrCreate(userID int64) (*models.Wallet, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	var wallet *models.Wallet
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = s.GetOrCreateTx(tx, userID)
		return err
	})
	return wallet, err
}

// GetOrCreateTx is GetOrCreate inside an existing transaction. The caller
// must hold the user's lock.
func (s *Service) GetOrCreateTx(tx *gorm.DB, userID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error finding wallet: %w", err)
	}

	wallet = models.Wallet{UserID: userID}
	if err := tx.Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("error creating wallet: %w", err)
	}
	return &wallet, nil
}

// Credit adds amount to both balance and total earned
func (s *Service) Credit(userID, amount int64, kind, reference string) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := s.WithUserLock(userID, func(tx *gorm.DB) error {
		var err error
		wallet, err = s.CreditTx(tx, userID, amount, kind, reference)
		return err
	})
	return wallet, err
}

// CreditTx credits a wallet inside an existing transaction. The caller must
// hold the user's lock.
func (s *Service) CreditTx(tx *gorm.DB, userID, amount int64, kind, reference string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}

	balanceBefore := wallet.Balance
	wallet.Balance += amount
	wallet.TotalEarned += amount

	if err := tx.Model(wallet).Updates(map[string]interface{}{
		"balance":      wallet.Balance,
		"total_earned": wallet.TotalEarned,
	}).Error; err != nil {
		return nil, fmt.Errorf("error updating wallet balance: %w", err)
	}

	entry := models.LedgerEntry{
		UserID:        userID,
		Amount:        amount,
		Kind:          kind,
		Reference:     reference,
		BalanceBefore: balanceBefore,
		BalanceAfter:  wallet.Balance,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("error creating ledger entry: %w", err)
	}

	return wallet, nil
}

// Debit removes amount from the balance only. Total earned is untouched by
// withdrawals.
func (s *Service) Debit(userID, amount int64, kind, reference string) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := s.WithUserLock(userID, func(tx *gorm.DB) error {
		var err error
		wallet, err = s.DebitTx(tx, userID, amount, kind, reference)
		return err
	})
	return wallet, err
}

// DebitTx debits a wallet inside an existing transaction, failing with
// ErrInsufficientBalance when the wallet cannot cover the amount. The caller
// must hold the user's lock.
func (s *Service) DebitTx(tx *gorm.DB, userID, amount int64, kind, reference string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}

	if wallet.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	balanceBefore := wallet.Balance
	wallet.Balance -= amount

	if err := tx.Model(wallet).Update("balance", wallet.Balance).Error; err != nil {
		return nil, fmt.Errorf("error updating wallet balance: %w", err)
	}

	entry := models.LedgerEntry{
		UserID:        userID,
		Amount:        -amount,
		Kind:          kind,
		Reference:     reference,
		BalanceBefore: balanceBefore,
		BalanceAfter:  wallet.Balance,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("error creating ledger entry: %w", err)
	}

	return wallet, nil
}

// RefundTx restores a previously debited amount to the balance. Total earned
// is untouched since the money was the user's to begin with. The caller must
// hold the user's lock.
func (s *Service) RefundTx(tx *gorm.DB, userID, amount int64, reference string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.GetOrCreateTx(tx, userID)
	if err != nil {
		return nil, err
	}

	balanceBefore := wallet.Balance
	wallet.Balance += amount

	if err := tx.Model(wallet).Update("balance", wallet.Balance).Error; err != nil {
		return nil, fmt.Errorf("error updating wallet balance: %w", err)
	}

	entry := models.LedgerEntry{
		UserID:        userID,
		Amount:        amount,
		Kind:          models.EntryKindRefund,
		Reference:     reference,
		BalanceBefore: balanceBefore,
		BalanceAfter:  wallet.Balance,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("error creating ledger entry: %w", err)
	}

	return wallet, nil
}

// IncrementTasksDoneTx bumps the completed-task counter. The caller must hold
// the user's lock.
func (s *Service) IncrementTasksDoneTx(tx *gorm.DB, userID int64) error {
	if _, err := s.GetOrCreateTx(tx, userID); err != nil {
		return err
	}
	return tx.Model(&models.Wallet{}).Where("user_id = ?", userID).
		UpdateColumn("tasks_done", gorm.Expr("tasks_done + 1")).Error
}

// IncrementReferralsTx bumps the referral counter. The caller must hold the
// user's lock.
func (s *Service) IncrementReferralsTx(tx *gorm.DB, userID int64) error {
	if _, err := s.GetOrCreateTx(tx, userID); err != nil {
		return err
	}
	return tx.Model(&models.Wallet{}).Where("user_id = ?", userID).
		UpdateColumn("referrals", gorm.Expr("referrals + 1")).Error
}

// SetPremium sets the premium capability flag
func (s *Service) SetPremium(userID int64, premium bool) error {
	return s.WithUserLock(userID, func(tx *gorm.DB) error {
		if _, err := s.GetOrCreateTx(tx, userID); err != nil {
			return err
		}
		return tx.Model(&models.Wallet{}).Where("user_id = ?", userID).
			Update("premium", premium).Error
	})
}

// AddDailyWithdrawnTx reserves amount against the user's daily allowance.
// The caller must hold the user's lock and have checked the cap.
func (s *Service) AddDailyWithdrawnTx(tx *gorm.DB, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return tx.Model(&models.Wallet{}).Where("user_id = ?", userID).
		UpdateColumn("daily_withdrawn", gorm.Expr("daily_withdrawn + ?", amount)).Error
}

// ReverseDailyWithdrawnTx refunds a reservation made at request creation,
// clamped at zero so a reset between creation and rejection cannot drive the
// counter negative.
func (s *Service) ReverseDailyWithdrawnTx(tx *gorm.DB, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return tx.Model(&models.Wallet{}).Where("user_id = ?", userID).
		UpdateColumn("daily_withdrawn",
			gorm.Expr("CASE WHEN daily_withdrawn >= ? THEN daily_withdrawn - ? ELSE 0 END", amount, amount)).Error
}

// ResetAllDailyWithdrawn zeroes the daily withdrawal counters for every
// wallet. Invoked by the daily reset trigger.
func (s *Service) ResetAllDailyWithdrawn() error {
	return s.db.Model(&models.Wallet{}).Where("daily_withdrawn <> 0").
		UpdateColumn("daily_withdrawn", 0).Error
}

// Top returns the highest balances first, for the leaderboard.
func (s *Service) Top(limit int) ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := s.db.Order("balance DESC").Limit(limit).Find(&wallets).Error; err != nil {
		return nil, fmt.Errorf("error listing wallets: %w", err)
	}
	return wallets, nil
}

// History returns a page of ledger entries for a user, newest first.
func (s *Service) History(userID int64, page, pageSize int) ([]models.LedgerEntry, int64, error) {
	var entries []models.LedgerEntry
	var total int64

	if err := s.db.Model(&models.LedgerEntry{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting ledger entries: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").
		Offset(offset).Limit(pageSize).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding ledger entries: %w", err)
	}

	return entries, total, nil
}
