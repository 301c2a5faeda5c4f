package wallet

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fitcore/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Wallet{}, &models.WalletTransaction{}))
	return db
}

func TestGetOrCreateWallet(t *testing.T) {
	db := setupTestDB(t)
	service := NewWalletService(db)
	tenantID := uuid.New()
	memberID := uuid.New()

	first, err := service.GetOrCreateWallet(tenantID, memberID, "SAR")
	require.NoError(t, err)
	assert.True(t, first.Balance.IsZero())

	second, err := service.GetOrCreateWallet(tenantID, memberID, "SAR")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// a different currency gets its own wallet
	other, err := service.GetOrCreateWallet(tenantID, memberID, "USD")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCredit(t *testing.T) {
	db := setupTestDB(t)
	service := NewWalletService(db)
	tenantID := uuid.New()
	memberID := uuid.New()

	require.NoError(t, service.Credit(tenantID, memberID, decimal.NewFromInt(50), "SAR", "Referral reward"))
	require.NoError(t, service.Credit(tenantID, memberID, decimal.NewFromFloat(25.50), "SAR", "Referral reward"))

	wallet, err := service.GetOrCreateWallet(tenantID, memberID, "SAR")
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromFloat(75.50)), "got %s", wallet.Balance)

	transactions, total, err := service.GetTransactionHistory(wallet.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, transactions, 2)

	// newest first
	latest := transactions[0]
	assert.Equal(t, "credit", latest.Type)
	assert.True(t, latest.BalanceBefore.Equal(decimal.NewFromInt(50)))
	assert.True(t, latest.BalanceAfter.Equal(decimal.NewFromFloat(75.50)))
	assert.True(t, strings.HasPrefix(latest.Reference, "WLT_"))
}
