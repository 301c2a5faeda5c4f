package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// CreateReferralTables creates the referral program tables
func CreateReferralTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_referral_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

				CREATE TABLE IF NOT EXISTS referral_codes (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					tenant_id UUID NOT NULL,
					member_id UUID NOT NULL,
					code VARCHAR(50) NOT NULL UNIQUE,
					is_active BOOLEAN DEFAULT TRUE,
					click_count BIGINT DEFAULT 0,
					conversion_count BIGINT DEFAULT 0,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE,
					CONSTRAINT idx_referral_codes_tenant_member UNIQUE (tenant_id, member_id)
				);

				CREATE INDEX IF NOT EXISTS idx_referral_codes_code ON referral_codes(code);
			`).Error; err != nil {
				return err
			}

			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS referrals (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					tenant_id UUID NOT NULL,
					referral_code_id UUID NOT NULL REFERENCES referral_codes(id),
					referrer_member_id UUID NOT NULL,
					referee_member_id UUID UNIQUE,
					subscription_id UUID,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					converted_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_member_id);
				CREATE INDEX IF NOT EXISTS idx_referrals_status ON referrals(status);
			`).Error; err != nil {
				return err
			}

			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS referral_program_configs (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					tenant_id UUID NOT NULL UNIQUE,
					is_enabled BOOLEAN DEFAULT FALSE,
					code_prefix VARCHAR(10) DEFAULT 'REF',
					reward_type VARCHAR(20) DEFAULT 'wallet_credit',
					reward_amount DECIMAL(20,2) DEFAULT 0,
					reward_currency VARCHAR(3),
					reward_free_days INTEGER DEFAULT 0,
					min_subscription_age_days INTEGER DEFAULT 0,
					max_referrals_per_member INTEGER,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS referral_rewards (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					tenant_id UUID NOT NULL,
					referral_id UUID NOT NULL REFERENCES referrals(id),
					member_id UUID NOT NULL,
					reward_type VARCHAR(20) NOT NULL,
					amount DECIMAL(20,2) DEFAULT 0,
					currency VARCHAR(3),
					free_days INTEGER DEFAULT 0,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					distributed_at TIMESTAMP WITH TIME ZONE,
					failure_reason TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_referral_rewards_status ON referral_rewards(status);
				CREATE INDEX IF NOT EXISTS idx_referral_rewards_member ON referral_rewards(member_id);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`
				DROP TABLE IF EXISTS referral_rewards;
				DROP TABLE IF EXISTS referral_program_configs;
				DROP TABLE IF EXISTS referrals;
				DROP TABLE IF EXISTS referral_codes;
			`).Error
		},
	}
}
