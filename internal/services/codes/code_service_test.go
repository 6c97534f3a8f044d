package codes

import (
	"testing"
	"time"

	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/services/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setupService(t *testing.T) (*Service, *ledger.Service, *fakeClock) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.RedeemCode{},
		&models.Redemption{},
	))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledgerSvc := ledger.NewService(db)
	return NewServiceWithClock(db, ledgerSvc, clock.Now), ledgerSvc, clock
}

func TestIssue(t *testing.T) {
	svc, _, _ := setupService(t)

	code, err := svc.Issue(50, 3, 24*time.Hour, 99)
	require.NoError(t, err)
	assert.Len(t, code.Code, codeLength)
	assert.Equal(t, int64(50), code.Amount)
	assert.Equal(t, 3, code.MaxUses)
	assert.True(t, code.Active)
	require.NotNil(t, code.ExpiresAt)

	// A zero ttl means no expiry.
	forever, err := svc.Issue(10, 1, 0, 99)
	require.NoError(t, err)
	assert.Nil(t, forever.ExpiresAt)
}

func TestIssueRejectsInvalidAmount(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Issue(0, 1, 0, 99)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestRedeemCreditsOnce(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	code, err := svc.Issue(50, 5, 0, 99)
	require.NoError(t, err)

	amount, err := svc.Redeem(code.Code, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), amount)

	wallet, err := ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance)

	// The same user can never redeem the same code twice, whatever MaxUses
	// still allows.
	_, err = svc.Redeem(code.Code, 1)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	wallet, err = ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance)
}

func TestRedeemByMultipleUsers(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	code, err := svc.Issue(50, 2, 0, 99)
	require.NoError(t, err)

	_, err = svc.Redeem(code.Code, 1)
	require.NoError(t, err)
	_, err = svc.Redeem(code.Code, 2)
	require.NoError(t, err)

	for _, userID := range []int64{1, 2} {
		wallet, err := ledgerSvc.GetOrCreate(userID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), wallet.Balance)
	}
}

func TestRedeemExhausted(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	code, err := svc.Issue(50, 1, 0, 99)
	require.NoError(t, err)

	_, err = svc.Redeem(code.Code, 1)
	require.NoError(t, err)

	_, err = svc.Redeem(code.Code, 2)
	assert.ErrorIs(t, err, ErrExhausted)

	wallet, err := ledgerSvc.GetOrCreate(2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Redeem("NOSUCHCODE", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemInactive(t *testing.T) {
	svc, _, _ := setupService(t)

	code, err := svc.Issue(50, 5, 0, 99)
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(code.Code))

	_, err = svc.Redeem(code.Code, 1)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestRedeemExpired(t *testing.T) {
	svc, _, clock := setupService(t)

	code, err := svc.Issue(50, 5, time.Hour, 99)
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)

	_, err = svc.Redeem(code.Code, 1)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDeactivateUnknownCode(t *testing.T) {
	svc, _, _ := setupService(t)

	assert.ErrorIs(t, svc.Deactivate("NOSUCHCODE"), ErrNotFound)
}
