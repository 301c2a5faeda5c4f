package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferralStatus represents the lifecycle state of a referral
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusSignedUp  ReferralStatus = "signed_up"
	ReferralStatusConverted ReferralStatus = "converted"
)

// RewardType represents the shape of a referral reward
type RewardType string

const (
	RewardTypeWalletCredit    RewardType = "wallet_credit"
	RewardTypeFreeDays        RewardType = "free_days"
	RewardTypeDiscountPercent RewardType = "discount_percent"
	RewardTypeDiscountAmount  RewardType = "discount_amount"
)

// RewardStatus represents the lifecycle state of a referral reward
type RewardStatus string

const (
	RewardStatusPending     RewardStatus = "pending"
	RewardStatusDistributed RewardStatus = "distributed"
	RewardStatusFailed      RewardStatus = "failed"
	RewardStatusCancelled   RewardStatus = "cancelled"
)

// ReferralCode is a member's unique referral code with lifetime counters.
// Created lazily on first request, never deleted, only deactivated.
type ReferralCode struct {
	Base
	TenantID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_referral_codes_tenant_member" json:"tenant_id"`
	MemberID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_referral_codes_tenant_member" json:"member_id"`
	Code            string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	ClickCount      int64     `gorm:"default:0" json:"click_count"`
	ConversionCount int64     `gorm:"default:0" json:"conversion_count"`
}

// Referral tracks one click attempt through signup to conversion.
type Referral struct {
	Base
	TenantID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ReferralCodeID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"referral_code_id"`
	ReferralCode     ReferralCode   `gorm:"foreignKey:ReferralCodeID" json:"-"`
	ReferrerMemberID uuid.UUID      `gorm:"type:uuid;not null;index" json:"referrer_member_id"`
	RefereeMemberID  *uuid.UUID     `gorm:"type:uuid;uniqueIndex" json:"referee_member_id,omitempty"`
	SubscriptionID   *uuid.UUID     `gorm:"type:uuid" json:"subscription_id,omitempty"`
	Status           ReferralStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ConvertedAt      *time.Time     `json:"converted_at,omitempty"`
}

// CanConvert reports whether the referral may still advance. A converted
// referral is terminal.
func (r *Referral) CanConvert() bool {
	return r.Status == ReferralStatusPending || r.Status == ReferralStatusSignedUp
}

// ReferralProgramConfig is the per-tenant referral program configuration.
// Exactly one row per tenant, created disabled on first access.
type ReferralProgramConfig struct {
	Base
	TenantID               uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"tenant_id"`
	IsEnabled              bool            `gorm:"default:false" json:"is_enabled"`
	CodePrefix             string          `gorm:"type:varchar(10);default:'REF'" json:"code_prefix"`
	RewardType             RewardType      `gorm:"type:varchar(20);default:'wallet_credit'" json:"reward_type"`
	RewardAmount           decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"reward_amount"`
	RewardCurrency         string          `gorm:"type:varchar(3)" json:"reward_currency"`
	RewardFreeDays         int             `gorm:"default:0" json:"reward_free_days"`
	MinSubscriptionAgeDays int             `gorm:"default:0" json:"min_subscription_age_days"`
	MaxReferralsPerMember  *int            `json:"max_referrals_per_member,omitempty"`
}

// HasValidRewardShape reports whether the reward configuration is
// structurally complete for the configured reward type.
func (c *ReferralProgramConfig) HasValidRewardShape() bool {
	switch c.RewardType {
	case RewardTypeWalletCredit, RewardTypeDiscountAmount:
		return c.RewardAmount.IsPositive() && c.RewardCurrency != ""
	case RewardTypeDiscountPercent:
		return c.RewardAmount.IsPositive()
	case RewardTypeFreeDays:
		return c.RewardFreeDays > 0
	default:
		return false
	}
}

// ReferralReward is the payout record for a converted referral. Amounts
// are snapshotted from config at creation time so later config changes
// never alter an already-created reward.
type ReferralReward struct {
	Base
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ReferralID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"referral_id"`
	Referral      Referral        `gorm:"foreignKey:ReferralID" json:"-"`
	MemberID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"member_id"`
	RewardType    RewardType      `gorm:"type:varchar(20);not null" json:"reward_type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount"`
	Currency      string          `gorm:"type:varchar(3)" json:"currency"`
	FreeDays      int             `gorm:"default:0" json:"free_days"`
	Status        RewardStatus    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	DistributedAt *time.Time      `json:"distributed_at,omitempty"`
	FailureReason string          `gorm:"type:text" json:"failure_reason,omitempty"`
}

// ReferralStats is a read-only aggregate over a referrer's code and
// referrals, consumed by the API layer.
type ReferralStats struct {
	Code           string  `json:"code"`
	ClickCount     int64   `json:"click_count"`
	TotalReferrals int64   `json:"total_referrals"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}
