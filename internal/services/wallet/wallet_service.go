package wallet

import (
	"errors"
	"fmt"

	"github.com/fitcore/backend/internal/models"
	"github.com/fitcore/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService handles member wallet operations
type WalletService struct {
	db *gorm.DB
}

// NewWalletService creates a new wallet service
func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// GetOrCreateWallet gets a member's wallet for a currency or creates one
func (s *WalletService) GetOrCreateWallet(tenantID, memberID uuid.UUID, currency string) (*models.Wallet, error) {
	var wallet models.Wallet

	err := s.db.Where("member_id = ? AND currency = ?", memberID, currency).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error finding wallet: %w", err)
	}

	wallet = models.Wallet{
		TenantID: tenantID,
		MemberID: memberID,
		Currency: currency,
		Balance:  decimal.Zero,
	}
	if err := s.db.Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("error creating wallet: %w", err)
	}

	return &wallet, nil
}

// GetWallet gets a specific wallet by ID
func (s *WalletService) GetWallet(walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.First(&wallet, "id = ?", walletID).Error; err != nil {
		return nil, fmt.Errorf("error finding wallet: %w", err)
	}
	return &wallet, nil
}

// Credit adds funds to a member's wallet and records a ledger entry.
// The wallet is created on first credit.
func (s *WalletService) Credit(tenantID, memberID uuid.UUID, amount decimal.Decimal, currency, description string) error {
	wallet, err := s.GetOrCreateWallet(tenantID, memberID, currency)
	if err != nil {
		return err
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("error beginning transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Re-read with a row lock so concurrent credits serialize
	var locked models.Wallet
	if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&locked, "id = ?", wallet.ID).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("error locking wallet: %w", err)
	}

	balanceBefore := locked.Balance
	locked.Balance = locked.Balance.Add(amount)
	if err := tx.Save(&locked).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("error updating wallet balance: %w", err)
	}

	transaction := models.WalletTransaction{
		WalletID:      locked.ID,
		Type:          "credit",
		Amount:        amount,
		Currency:      currency,
		Reference:     utils.GenerateReference("WLT"),
		Description:   description,
		BalanceBefore: balanceBefore,
		BalanceAfter:  locked.Balance,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("error creating transaction record: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// GetTransactionHistory gets transaction history for a wallet
func (s *WalletService) GetTransactionHistory(walletID uuid.UUID, page, pageSize int) ([]models.WalletTransaction, int64, error) {
	var transactions []models.WalletTransaction
	var total int64

	if err := s.db.Model(&models.WalletTransaction{}).Where("wallet_id = ?", walletID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting transactions: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Where("wallet_id = ?", walletID).Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding transactions: %w", err)
	}

	return transactions, total, nil
}
