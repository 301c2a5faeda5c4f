package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the status of a member subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is a paid membership subscription. Plan management and
// billing are owned by the membership service; conversion tracking only
// needs the linkage and the purchase timestamp.
type Subscription struct {
	Base
	TenantID  uuid.UUID          `gorm:"type:uuid;not null;index" json:"tenant_id"`
	MemberID  uuid.UUID          `gorm:"type:uuid;not null;index" json:"member_id"`
	PlanName  string             `gorm:"type:varchar(255)" json:"plan_name"`
	Price     decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"price"`
	Currency  string             `gorm:"type:varchar(3)" json:"currency"`
	Status    SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	StartDate time.Time          `json:"start_date"`
	EndDate   *time.Time         `json:"end_date,omitempty"`
}
