package codes

import (
	"errors"
	"fmt"
	"time"

	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/services/ledger"
	"github.com/starbank/backend/internal/utils"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no code record matches.
	ErrNotFound = errors.New("code not found")

	// ErrInactive is returned when the code has been switched off.
	ErrInactive = errors.New("code is inactive")

	// ErrExpired is returned when the code's expiry instant has passed.
	ErrExpired = errors.New("code has expired")

	// ErrExhausted is returned when the code has reached its use cap.
	ErrExhausted = errors.New("code is exhausted")

	// ErrAlreadyRedeemed is returned when this user already redeemed the code.
	ErrAlreadyRedeemed = errors.New("code already redeemed by this user")
)

const codeLength = 10

// Service issues and redeems voucher codes that credit the ledger once per
// user, subject to expiry and a global use-count cap.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	now    func() time.Time
}

// NewService creates a new code vault service
func NewService(db *gorm.DB, ledgerSvc *ledger.Service) *Service {
	return &Service{db: db, ledger: ledgerSvc, now: time.Now}
}

// NewServiceWithClock creates a code vault service with a custom time source.
func NewServiceWithClock(db *gorm.DB, ledgerSvc *ledger.Service, now func() time.Time) *Service {
	return &Service{db: db, ledger: ledgerSvc, now: now}
}

// Issue generates a code unique among active and historical codes and
// persists it. A zero ttl means the code never expires.
func (s *Service) Issue(amount int64, maxUses int, ttl time.Duration, createdBy int64) (*models.RedeemCode, error) {
	if amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	if maxUses < 1 {
		maxUses = 1
	}

	code := models.RedeemCode{
		Amount:    amount,
		MaxUses:   maxUses,
		Active:    true,
		CreatedBy: createdBy,
	}
	if ttl > 0 {
		expires := s.now().Add(ttl)
		code.ExpiresAt = &expires
	}

	// Retry on the unique index until an unused code comes up. Collisions
	// are vanishingly rare at this code length.
	for attempt := 0; attempt < 5; attempt++ {
		code.Code = utils.GenerateCode(codeLength)
		err := s.db.Create(&code).Error
		if err == nil {
			return &code, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("error creating redeem code: %w", err)
		}
	}
	return nil, errors.New("could not generate a unique code")
}

// Redeem credits the code's amount to the user once. The use-count increment,
// the redemption record and the credit commit as one unit.
func (s *Service) Redeem(codeStr string, userID int64) (int64, error) {
	var amount int64

	err := s.ledger.WithUserLock(userID, func(tx *gorm.DB) error {
		var code models.RedeemCode
		if err := tx.Where("code = ?", codeStr).First(&code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("error finding redeem code: %w", err)
		}

		if !code.Active {
			return ErrInactive
		}
		if code.Expired(s.now()) {
			return ErrExpired
		}
		if code.UsedCount >= code.MaxUses {
			return ErrExhausted
		}

		var existing models.Redemption
		err := tx.Where("code_id = ? AND user_id = ?", code.ID, userID).First(&existing).Error
		if err == nil {
			return ErrAlreadyRedeemed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("error finding redemption: %w", err)
		}

		// The guarded update loses the race against a concurrent redemption
		// that would jointly exceed max uses.
		res := tx.Model(&models.RedeemCode{}).
			Where("id = ? AND used_count < max_uses", code.ID).
			UpdateColumn("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("error incrementing code use count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrExhausted
		}

		redemption := models.Redemption{
			CodeID: code.ID,
			UserID: userID,
			Amount: code.Amount,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRedeemed
			}
			return fmt.Errorf("error creating redemption: %w", err)
		}

		if _, err := s.ledger.CreditTx(tx, userID, code.Amount, models.EntryKindRedeem, code.Code); err != nil {
			return err
		}

		amount = code.Amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// Deactivate flips the kill-switch on a code, independent of expiry and
// use count.
func (s *Service) Deactivate(codeStr string) error {
	res := s.db.Model(&models.RedeemCode{}).Where("code = ?", codeStr).Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("error deactivating code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all codes, newest first.
func (s *Service) List(limit int) ([]models.RedeemCode, error) {
	var list []models.RedeemCode
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("error listing codes: %w", err)
	}
	return list, nil
}
