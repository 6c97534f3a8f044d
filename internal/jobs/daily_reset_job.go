package jobs

import (
	"log"

	"github.com/go-co-op/gocron"
	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/services/ledger"
)

// DailyResetJob zeroes every wallet's daily withdrawal counter once per
// calendar day and credits the configured bonus to admin wallets.
type DailyResetJob struct {
	ledger     *ledger.Service
	adminIDs   []int64
	adminBonus int64
}

// NewDailyResetJob creates a new daily reset job
func NewDailyResetJob(ledgerSvc *ledger.Service, adminIDs []int64, adminBonus int64) *DailyResetJob {
	return &DailyResetJob{ledger: ledgerSvc, adminIDs: adminIDs, adminBonus: adminBonus}
}

// Schedule runs the reset at midnight UTC
func (j *DailyResetJob) Schedule(scheduler *gocron.Scheduler) error {
	_, err := scheduler.Every(1).Day().At("00:00").Do(j.Run)
	return err
}

// Run performs the reset and bonus crediting
func (j *DailyResetJob) Run() {
	if err := j.ledger.ResetAllDailyWithdrawn(); err != nil {
		log.Printf("error resetting daily withdrawals: %v", err)
		return
	}
	log.Println("daily withdrawal limits reset")

	if j.adminBonus <= 0 {
		return
	}
	for _, adminID := range j.adminIDs {
		if _, err := j.ledger.Credit(adminID, j.adminBonus, models.EntryKindBonus, "daily_admin_bonus"); err != nil {
			log.Printf("error crediting daily bonus to admin %d: %v", adminID, err)
		}
	}
}
