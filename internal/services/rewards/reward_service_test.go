package rewards

import (
	"errors"
	"sync"
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
		&models.ActionRecord{},
		&models.Referral{},
		&models.Task{},
		&models.TaskCompletion{},
		&models.Payment{},
	))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledgerSvc := ledger.NewService(db)
	cooldownSvc := cooldown.NewServiceWithClock(db, clock.Now)
	cfg := config.RewardsConfig{
		EarnCooldownSeconds:  60,
		EarnRewardMin:        1,
		EarnRewardMax:        3,
		ReferralReward:       5,
		ReferralCooldownSecs: 60,
	}
	return NewService(db, ledgerSvc, cooldownSvc, cfg), ledgerSvc, clock
}

func TestGrantEarnCycle(t *testing.T) {
	svc, ledgerSvc, clock := setupService(t)

	amount, wallet, err := svc.GrantEarn(1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, amount, int64(1))
	assert.LessOrEqual(t, amount, int64(3))
	assert.Equal(t, amount, wallet.Balance)
	assert.Equal(t, amount, wallet.TotalEarned)
	assert.Equal(t, int64(1), wallet.TasksDone)

	// An immediate retry is on cooldown with the remaining wait reported.
	_, _, err = svc.GrantEarn(1)
	var cdErr *CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 60, cdErr.Remaining)

	// Nothing was credited by the blocked attempt.
	current, err := ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, amount, current.Balance)

	clock.Advance(61 * time.Second)
	second, wallet, err := svc.GrantEarn(1)
	require.NoError(t, err)
	assert.Equal(t, amount+second, wallet.Balance)
	assert.Equal(t, int64(2), wallet.TasksDone)
}

func TestGrantEarnConcurrentCallsGrantOnce(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	type result struct {
		amount int64
		err    error
	}
	results := make(chan result, 2)

	// Both calls race toward the same open window; the one that loses the
	// user lock must find it closed.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			amount, _, err := svc.GrantEarn(1)
			results <- result{amount: amount, err: err}
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	var granted int64
	for r := range results {
		if r.err == nil {
			successes++
			granted += r.amount
			continue
		}
		var cdErr *CooldownError
		require.ErrorAs(t, r.err, &cdErr)
		assert.Equal(t, 60, cdErr.Remaining)
	}
	require.Equal(t, 1, successes, "one grant per cooldown window")

	wallet, err := ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, granted, wallet.Balance)
	assert.Equal(t, int64(1), wallet.TasksDone)
}

func TestGrantReferral(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	granted, err := svc.GrantReferral(10, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(5), granted)

	wallet, err := ledgerSvc.GetOrCreate(10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), wallet.Balance)
	assert.Equal(t, int64(1), wallet.Referrals)
}

func TestGrantReferralDoubleCreditPrevention(t *testing.T) {
	svc, ledgerSvc, clock := setupService(t)

	granted, err := svc.GrantReferral(10, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(5), granted)

	// A retried start event for the same new user is a silent no-op even
	// once the cooldown has passed.
	clock.Advance(61 * time.Second)
	granted, err = svc.GrantReferral(10, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), granted)

	wallet, err := ledgerSvc.GetOrCreate(10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), wallet.Balance)
	assert.Equal(t, int64(1), wallet.Referrals)
}

func TestGrantReferralConcurrentCallsGrantOnce(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	// Two different new users start at the same instant; the referral
	// cooldown allows the referrer only one credit.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, newUserID := range []int64{20, 30} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.GrantReferral(10, id)
			errs <- err
		}(newUserID)
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		var cdErr *CooldownError
		require.ErrorAs(t, err, &cdErr)
	}
	require.Equal(t, 1, successes, "one referral credit per cooldown window")

	wallet, err := ledgerSvc.GetOrCreate(10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), wallet.Balance)
	assert.Equal(t, int64(1), wallet.Referrals)
}

func TestGrantReferralSelfIsNoOp(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	granted, err := svc.GrantReferral(10, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), granted)

	wallet, err := ledgerSvc.GetOrCreate(10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)
}

func TestGrantReferralCooldown(t *testing.T) {
	svc, _, clock := setupService(t)

	_, err := svc.GrantReferral(10, 20)
	require.NoError(t, err)

	_, err = svc.GrantReferral(10, 30)
	var cdErr *CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Greater(t, cdErr.Remaining, 0)

	clock.Advance(61 * time.Second)
	granted, err := svc.GrantReferral(10, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(5), granted)
}

func TestSubmitTaskCreditsImmediately(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	task, err := svc.CreateTask("Join our channel", 10, false, 99)
	require.NoError(t, err)
	assert.Equal(t, "join-our-channel", task.Slug)

	credited, err := svc.SubmitTask(1, task.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(10), credited)

	wallet, err := ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), wallet.Balance)
	assert.Equal(t, int64(1), wallet.TasksDone)

	_, err = svc.SubmitTask(1, task.Slug)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestSubmitUnknownTask(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.SubmitTask(1, "no-such-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestReviewGatedTask(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	task, err := svc.CreateTask("Post a review", 25, true, 99)
	require.NoError(t, err)

	credited, err := svc.SubmitTask(1, task.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(0), credited, "review-gated tasks credit nothing at submission")

	wallet, err := ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)

	credited, err = svc.ApproveTask(1, task.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(25), credited)

	wallet, err = ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), wallet.Balance)

	// A second approval is rejected and credits nothing more.
	_, err = svc.ApproveTask(1, task.Slug)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	wallet, err = ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), wallet.Balance)
}

func TestGrantPurchaseIdempotentOnChargeID(t *testing.T) {
	svc, ledgerSvc, _ := setupService(t)

	wallet, err := svc.GrantPurchase(1, 100, 199, "charge-abc")
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)

	_, err = svc.GrantPurchase(1, 100, 199, "charge-abc")
	assert.ErrorIs(t, err, ErrDuplicatePayment)

	current, err := ledgerSvc.GetOrCreate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), current.Balance)
}

func TestGrantPurchaseRequiresChargeID(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.GrantPurchase(1, 100, 199, "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicatePayment))
}
