package referral

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fitcore/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an isolated in-memory database per test
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Subscription{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.ReferralProgramConfig{},
		&models.ReferralReward{},
	)
	require.NoError(t, err)

	return db
}

// MockWallet is a mock wallet collaborator
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Credit(tenantID, memberID uuid.UUID, amount decimal.Decimal, currency, description string) error {
	args := m.Called(tenantID, memberID, amount, currency, description)
	return args.Error(0)
}

// enabledConfig persists an enabled wallet-credit program for a tenant
func enabledConfig(t *testing.T, db *gorm.DB, tenantID uuid.UUID) *models.ReferralProgramConfig {
	t.Helper()

	config := &models.ReferralProgramConfig{
		TenantID:       tenantID,
		IsEnabled:      true,
		CodePrefix:     "REF",
		RewardType:     models.RewardTypeWalletCredit,
		RewardAmount:   decimal.NewFromInt(50),
		RewardCurrency: "SAR",
	}
	require.NoError(t, db.Create(config).Error)
	return config
}

// activeCode persists an active referral code for a member
func activeCode(t *testing.T, db *gorm.DB, tenantID, memberID uuid.UUID, code string) *models.ReferralCode {
	t.Helper()

	rc := &models.ReferralCode{
		TenantID: tenantID,
		MemberID: memberID,
		Code:     code,
		IsActive: true,
	}
	require.NoError(t, db.Create(rc).Error)
	return rc
}
