package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet represents a member's wallet
type Wallet struct {
	Base
	TenantID uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	MemberID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_wallets_member_currency" json:"member_id"`
	Currency string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_wallets_member_currency" json:"currency"`
	Balance  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"balance"`
}

// WalletTransaction represents a single wallet ledger entry
type WalletTransaction struct {
	Base
	WalletID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Wallet        Wallet          `gorm:"foreignKey:WalletID" json:"-"`
	Type          string          `gorm:"type:varchar(50);not null" json:"type"` // credit, debit
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	Reference     string          `gorm:"type:varchar(100)" json:"reference"`
	Description   string          `gorm:"type:text" json:"description"`
	MetaData      JSON            `gorm:"type:jsonb" json:"metadata"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,2)" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,2)" json:"balance_after"`
}
