package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createLedgerTables creates the wallet, cooldown and withdrawal tables
func createLedgerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_ledger_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS wallets (
					user_id BIGINT PRIMARY KEY,
					balance BIGINT NOT NULL DEFAULT 0,
					total_earned BIGINT NOT NULL DEFAULT 0,
					referrals BIGINT NOT NULL DEFAULT 0,
					premium BOOLEAN NOT NULL DEFAULT FALSE,
					tasks_done BIGINT NOT NULL DEFAULT 0,
					daily_withdrawn BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS action_records (
					user_id BIGINT NOT NULL,
					action VARCHAR(32) NOT NULL,
					occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
					PRIMARY KEY (user_id, action)
				);

				CREATE TABLE IF NOT EXISTS referrals (
					id SERIAL PRIMARY KEY,
					referrer_id BIGINT NOT NULL,
					referred_id BIGINT NOT NULL UNIQUE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);

				CREATE TABLE IF NOT EXISTS withdrawal_requests (
					id SERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					amount BIGINT NOT NULL,
					kind VARCHAR(20) NOT NULL DEFAULT 'auto_payout',
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					reference VARCHAR(100),
					fail_reason TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					processed_at TIMESTAMP WITH TIME ZONE
				);
				CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_user ON withdrawal_requests(user_id);
				CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_status ON withdrawal_requests(status);
			`).Error; err != nil {
				return err
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`
				DROP TABLE IF EXISTS withdrawal_requests;
				DROP TABLE IF EXISTS referrals;
				DROP TABLE IF EXISTS action_records;
				DROP TABLE IF EXISTS wallets;
			`).Error
		},
	}
}
