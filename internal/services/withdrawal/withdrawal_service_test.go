package withdrawal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/services/cooldown"
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

type payoutCall struct {
	userID    int64
	amount    int64
	reference string
}

// fakeGateway records payout calls and fails when err is set.
type fakeGateway struct {
	err   error
	calls []payoutCall
}

func (g *fakeGateway) Payout(ctx context.Context, userID, amount int64, reference string) error {
	g.calls = append(g.calls, payoutCall{userID: userID, amount: amount, reference: reference})
	return g.err
}

type fixture struct {
	svc     *Service
	ledger  *ledger.Service
	gateway *fakeGateway
	clock   *fakeClock
}

func setup(t *testing.T, exempt func(int64) bool) *fixture {
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
		&models.ActionRecord{},
		&models.WithdrawalRequest{},
	))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledgerSvc := ledger.NewService(db)
	cooldownSvc := cooldown.NewServiceWithClock(db, clock.Now)
	gateway := &fakeGateway{}
	cfg := config.WithdrawalConfig{
		MinWithdraw:     50,
		DailyCap:        500,
		CooldownSeconds: 3600,
	}
	svc := NewService(db, ledgerSvc, cooldownSvc, gateway, cfg, exempt)
	return &fixture{svc: svc, ledger: ledgerSvc, gateway: gateway, clock: clock}
}

func (f *fixture) fund(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.ledger.Credit(userID, amount, models.EntryKindEarn, "")
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)

	_, err := f.svc.Create(1, 0, models.WithdrawalKindAuto)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.svc.Create(1, 49, models.WithdrawalKindAuto)
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = f.svc.Create(1, 101, models.WithdrawalKindAuto)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestCreateReservesDailyAllowance(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 1000)

	request, err := f.svc.Create(1, 200, models.WithdrawalKindAuto)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, request.Status)
	assert.NotEmpty(t, request.Reference)
	assert.Nil(t, request.ProcessedAt)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), wallet.Balance, "balance is debited at settlement, not creation")
	assert.Equal(t, int64(200), wallet.DailyWithdrawn)
}

func TestCreateDailyCap(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 1000)

	_, err := f.svc.Create(1, 400, models.WithdrawalKindAuto)
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)
	_, err = f.svc.Create(1, 101, models.WithdrawalKindAuto)
	assert.ErrorIs(t, err, ErrDailyCapExceeded)

	// Exactly hitting the cap is allowed.
	_, err = f.svc.Create(1, 100, models.WithdrawalKindAuto)
	require.NoError(t, err)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), wallet.DailyWithdrawn)
}

func TestCreateCapExemption(t *testing.T) {
	f := setup(t, func(userID int64) bool { return userID == 1 })
	f.fund(t, 1, 2000)

	_, err := f.svc.Create(1, 600, models.WithdrawalKindAuto)
	require.NoError(t, err)
}

func TestCreateCooldownGatesAutoOnly(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 1000)
	require.NoError(t, f.ledger.SetPremium(1, true))

	_, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)

	_, err = f.svc.Create(1, 50, models.WithdrawalKindAuto)
	var cdErr *CoolingDownError
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 3600, cdErr.Remaining)

	// Admin-approval requests are not gated by the payout cooldown.
	_, err = f.svc.Create(1, 50, models.WithdrawalKindAdmin)
	require.NoError(t, err)
}

func TestCreateAdminKindRequiresPremium(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 1000)

	_, err := f.svc.Create(1, 50, models.WithdrawalKindAdmin)
	assert.ErrorIs(t, err, ErrPremiumRequired)

	require.NoError(t, f.ledger.SetPremium(1, true))
	_, err = f.svc.Create(1, 50, models.WithdrawalKindAdmin)
	require.NoError(t, err)
}

func TestSettleAutoApproves(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)

	request, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)

	settled, err := f.svc.SettleAuto(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, settled.Status)
	require.NotNil(t, settled.ProcessedAt)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance)
	assert.Equal(t, int64(50), wallet.DailyWithdrawn)

	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, int64(1), f.gateway.calls[0].userID)
	assert.Equal(t, int64(50), f.gateway.calls[0].amount)
	assert.Equal(t, request.Reference, f.gateway.calls[0].reference)
}

func TestSettleAutoInsufficientBalanceRejects(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)

	request, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)

	// Another debit lands between creation and settlement.
	_, err = f.ledger.Debit(1, 70, models.EntryKindWithdrawal, "other")
	require.NoError(t, err)

	settled, err := f.svc.SettleAuto(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, settled.Status)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), wallet.Balance)
	assert.Equal(t, int64(50), wallet.DailyWithdrawn, "the attempt consumed the daily allowance")
	assert.Empty(t, f.gateway.calls)
}

func TestSettleAutoPayoutFailure(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)
	f.gateway.err = errors.New("gateway unreachable")

	request, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)

	settled, err := f.svc.SettleAuto(context.Background(), request.ID)
	require.Error(t, err)
	assert.Equal(t, models.WithdrawalStatusFailed, settled.Status)
	assert.Contains(t, settled.FailReason, "gateway unreachable")

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance, "the debit is rolled back")
	assert.Equal(t, int64(100), wallet.TotalEarned, "a rollback is not an earning")
	assert.Equal(t, int64(50), wallet.DailyWithdrawn, "the reservation stays consumed")
}

func TestSettleAutoTerminalIsNoOp(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)

	request, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)

	_, err = f.svc.SettleAuto(context.Background(), request.ID)
	require.NoError(t, err)

	_, err = f.svc.SettleAuto(context.Background(), request.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance, "no double debit")
	assert.Len(t, f.gateway.calls, 1, "no double payout")
}

func TestAdminApprove(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)
	require.NoError(t, f.ledger.SetPremium(1, true))

	request, err := f.svc.Create(1, 50, models.WithdrawalKindAdmin)
	require.NoError(t, err)

	approved, err := f.svc.AdminApprove(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, approved.Status)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance)
	require.Len(t, f.gateway.calls, 1)
}

func TestAdminApproveInsufficientBalanceLeavesPending(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)
	require.NoError(t, f.ledger.SetPremium(1, true))

	request, err := f.svc.Create(1, 80, models.WithdrawalKindAdmin)
	require.NoError(t, err)

	_, err = f.ledger.Debit(1, 50, models.EntryKindWithdrawal, "other")
	require.NoError(t, err)

	_, err = f.svc.AdminApprove(context.Background(), request.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// The request stays pending for a later retry once funds are back.
	current, err := f.svc.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, current.Status)
	assert.Empty(t, f.gateway.calls)
}

func TestAdminRejectRefundsDailyAllowance(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)

	request, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)

	rejected, err := f.svc.AdminReject(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)
	assert.Equal(t, int64(0), wallet.DailyWithdrawn, "no money moved, the allowance comes back")
}

func TestAdminActionsIdempotentOnTerminalRequests(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 100)

	request, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)

	_, err = f.svc.AdminReject(request.ID)
	require.NoError(t, err)

	_, err = f.svc.AdminReject(request.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.AdminApprove(context.Background(), request.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	wallet, err := f.ledger.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)
	assert.Equal(t, int64(0), wallet.DailyWithdrawn, "the refund is applied exactly once")
}

func TestSettleUnknownRequest(t *testing.T) {
	f := setup(t, nil)

	_, err := f.svc.SettleAuto(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingAutoPayoutsOrderAndKind(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 1000)
	f.fund(t, 2, 1000)
	require.NoError(t, f.ledger.SetPremium(1, true))

	first, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)
	second, err := f.svc.Create(2, 60, models.WithdrawalKindAuto)
	require.NoError(t, err)
	_, err = f.svc.Create(1, 70, models.WithdrawalKindAdmin)
	require.NoError(t, err)

	pending, err := f.svc.PendingAutoPayouts(10)
	require.NoError(t, err)
	require.Len(t, pending, 2, "admin-approval requests are not swept")
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	_, err = f.svc.SettleAuto(context.Background(), first.ID)
	require.NoError(t, err)

	pending, err = f.svc.PendingAutoPayouts(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestListByUser(t *testing.T) {
	f := setup(t, nil)
	f.fund(t, 1, 1000)

	_, err := f.svc.Create(1, 50, models.WithdrawalKindAuto)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Create(1, 60, models.WithdrawalKindAuto)
	require.NoError(t, err)

	requests, err := f.svc.ListByUser(1, 10)
	require.NoError(t, err)
	assert.Len(t, requests, 2)
}
