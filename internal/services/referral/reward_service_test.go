package referral

import (
	"errors"
	"testing"

	"github.com/fitcore/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func convertedReferral(t *testing.T, db *gorm.DB, tenantID, referrerID uuid.UUID) *models.Referral {
	t.Helper()

	rc := activeCode(t, db, tenantID, referrerID, "REF-"+uuid.NewString()[:8])
	refereeID := uuid.New()
	referral := &models.Referral{
		TenantID:         tenantID,
		ReferralCodeID:   rc.ID,
		ReferrerMemberID: referrerID,
		RefereeMemberID:  &refereeID,
		Status:           models.ReferralStatusConverted,
	}
	require.NoError(t, db.Create(referral).Error)
	return referral
}

func TestCreateReward(t *testing.T) {
	db := setupTestDB(t)
	configService := NewConfigService(db, nil)
	service := NewRewardService(db, configService, new(MockWallet))

	t.Run("snapshots the configured reward into a pending record", func(t *testing.T) {
		tenantID := uuid.New()
		referrerID := uuid.New()
		enabledConfig(t, db, tenantID)
		referral := convertedReferral(t, db, tenantID, referrerID)

		reward, err := service.CreateReward(referral)
		require.NoError(t, err)
		require.NotNil(t, reward)
		assert.Equal(t, models.RewardStatusPending, reward.Status)
		assert.Equal(t, referrerID, reward.MemberID)
		assert.Equal(t, models.RewardTypeWalletCredit, reward.RewardType)
		assert.True(t, reward.Amount.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, "SAR", reward.Currency)
	})

	t.Run("returns nil when the program is disabled", func(t *testing.T) {
		tenantID := uuid.New()
		referral := convertedReferral(t, db, tenantID, uuid.New())

		reward, err := service.CreateReward(referral)
		require.NoError(t, err)
		assert.Nil(t, reward)
	})

	t.Run("later config changes do not alter an existing reward", func(t *testing.T) {
		tenantID := uuid.New()
		enabledConfig(t, db, tenantID)
		referral := convertedReferral(t, db, tenantID, uuid.New())

		reward, err := service.CreateReward(referral)
		require.NoError(t, err)
		require.NotNil(t, reward)

		require.NoError(t, db.Model(&models.ReferralProgramConfig{}).
			Where("tenant_id = ?", tenantID).
			Update("reward_amount", decimal.NewFromInt(999)).Error)

		var reloaded models.ReferralReward
		require.NoError(t, db.First(&reloaded, "id = ?", reward.ID).Error)
		assert.True(t, reloaded.Amount.Equal(decimal.NewFromInt(50)))
	})
}

func TestDistributeReward(t *testing.T) {
	db := setupTestDB(t)
	configService := NewConfigService(db, nil)

	newReward := func(t *testing.T, tenantID, referrerID uuid.UUID, svc *RewardService) *models.ReferralReward {
		t.Helper()
		referral := convertedReferral(t, db, tenantID, referrerID)
		reward, err := svc.CreateReward(referral)
		require.NoError(t, err)
		require.NotNil(t, reward)
		return reward
	}

	t.Run("credits the wallet and marks the reward distributed", func(t *testing.T) {
		tenantID := uuid.New()
		referrerID := uuid.New()
		enabledConfig(t, db, tenantID)

		wallet := new(MockWallet)
		wallet.On("Credit", tenantID, referrerID, mock.Anything, "SAR", mock.Anything).Return(nil)
		service := NewRewardService(db, configService, wallet)

		reward := newReward(t, tenantID, referrerID, service)
		distributed, err := service.DistributeReward(reward.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RewardStatusDistributed, distributed.Status)
		assert.NotNil(t, distributed.DistributedAt)
		wallet.AssertExpectations(t)
	})

	t.Run("a wallet failure marks the reward failed", func(t *testing.T) {
		tenantID := uuid.New()
		referrerID := uuid.New()
		enabledConfig(t, db, tenantID)

		wallet := new(MockWallet)
		wallet.On("Credit", tenantID, referrerID, mock.Anything, "SAR", mock.Anything).
			Return(errors.New("wallet service unavailable"))
		service := NewRewardService(db, configService, wallet)

		reward := newReward(t, tenantID, referrerID, service)
		_, err := service.DistributeReward(reward.ID)
		require.Error(t, err)

		var distErr *DistributionError
		require.ErrorAs(t, err, &distErr)
		assert.Equal(t, reward.ID.String(), distErr.RewardID)

		var reloaded models.ReferralReward
		require.NoError(t, db.First(&reloaded, "id = ?", reward.ID).Error)
		assert.Equal(t, models.RewardStatusFailed, reloaded.Status)
		assert.Equal(t, "wallet service unavailable", reloaded.FailureReason)
	})

	t.Run("a failed reward cannot be distributed again", func(t *testing.T) {
		tenantID := uuid.New()
		enabledConfig(t, db, tenantID)
		service := NewRewardService(db, configService, new(MockWallet))

		reward := newReward(t, tenantID, uuid.New(), service)
		require.NoError(t, db.Model(reward).Update("status", models.RewardStatusFailed).Error)

		_, err := service.DistributeReward(reward.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("free days distribute without touching the wallet", func(t *testing.T) {
		tenantID := uuid.New()
		config := &models.ReferralProgramConfig{
			TenantID:       tenantID,
			IsEnabled:      true,
			CodePrefix:     "REF",
			RewardType:     models.RewardTypeFreeDays,
			RewardFreeDays: 7,
		}
		require.NoError(t, db.Create(config).Error)

		wallet := new(MockWallet)
		service := NewRewardService(db, configService, wallet)

		reward := newReward(t, tenantID, uuid.New(), service)
		distributed, err := service.DistributeReward(reward.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RewardStatusDistributed, distributed.Status)
		assert.Equal(t, 7, distributed.FreeDays)
		wallet.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProcessPendingRewards(t *testing.T) {
	db := setupTestDB(t)
	configService := NewConfigService(db, nil)
	tenantID := uuid.New()
	enabledConfig(t, db, tenantID)

	failingMember := uuid.New()
	wallet := new(MockWallet)
	wallet.On("Credit", tenantID, failingMember, mock.Anything, "SAR", mock.Anything).
		Return(errors.New("insufficient float"))
	wallet.On("Credit", tenantID, mock.Anything, mock.Anything, "SAR", mock.Anything).
		Return(nil)
	service := NewRewardService(db, configService, wallet)

	var failing *models.ReferralReward
	for i := 0; i < 5; i++ {
		memberID := uuid.New()
		if i == 2 {
			memberID = failingMember
		}
		referral := convertedReferral(t, db, tenantID, memberID)
		reward, err := service.CreateReward(referral)
		require.NoError(t, err)
		require.NotNil(t, reward)
		if i == 2 {
			failing = reward
		}
	}

	distributed, err := service.ProcessPendingRewards(100)
	require.NoError(t, err)
	assert.Equal(t, 4, distributed)

	var reloaded models.ReferralReward
	require.NoError(t, db.First(&reloaded, "id = ?", failing.ID).Error)
	assert.Equal(t, models.RewardStatusFailed, reloaded.Status)

	var distributedCount int64
	require.NoError(t, db.Model(&models.ReferralReward{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.RewardStatusDistributed).
		Count(&distributedCount).Error)
	assert.Equal(t, int64(4), distributedCount)
}

func TestCancelReward(t *testing.T) {
	db := setupTestDB(t)
	configService := NewConfigService(db, nil)
	service := NewRewardService(db, configService, new(MockWallet))
	tenantID := uuid.New()
	enabledConfig(t, db, tenantID)

	t.Run("cancels a pending reward", func(t *testing.T) {
		referral := convertedReferral(t, db, tenantID, uuid.New())
		reward, err := service.CreateReward(referral)
		require.NoError(t, err)

		cancelled, err := service.CancelReward(reward.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RewardStatusCancelled, cancelled.Status)
	})

	t.Run("rejects a distributed reward", func(t *testing.T) {
		referral := convertedReferral(t, db, tenantID, uuid.New())
		reward, err := service.CreateReward(referral)
		require.NoError(t, err)
		require.NoError(t, db.Model(reward).Update("status", models.RewardStatusDistributed).Error)

		_, err = service.CancelReward(reward.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestResetRewardForRetry(t *testing.T) {
	db := setupTestDB(t)
	configService := NewConfigService(db, nil)
	service := NewRewardService(db, configService, new(MockWallet))
	tenantID := uuid.New()
	enabledConfig(t, db, tenantID)

	newReward := func(t *testing.T) *models.ReferralReward {
		t.Helper()
		referral := convertedReferral(t, db, tenantID, uuid.New())
		reward, err := service.CreateReward(referral)
		require.NoError(t, err)
		require.NotNil(t, reward)
		return reward
	}

	t.Run("moves a failed reward back to pending", func(t *testing.T) {
		reward := newReward(t)
		require.NoError(t, db.Model(reward).Updates(map[string]interface{}{
			"status":         models.RewardStatusFailed,
			"failure_reason": "wallet service unavailable",
		}).Error)

		reset, err := service.ResetRewardForRetry(reward.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RewardStatusPending, reset.Status)
		assert.Empty(t, reset.FailureReason)

		var reloaded models.ReferralReward
		require.NoError(t, db.First(&reloaded, "id = ?", reward.ID).Error)
		assert.Equal(t, models.RewardStatusPending, reloaded.Status)
		assert.Empty(t, reloaded.FailureReason)
	})

	t.Run("resetting a pending reward is a no-op", func(t *testing.T) {
		reward := newReward(t)

		reset, err := service.ResetRewardForRetry(reward.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RewardStatusPending, reset.Status)
	})

	t.Run("rejects a distributed reward", func(t *testing.T) {
		reward := newReward(t)
		require.NoError(t, db.Model(reward).Update("status", models.RewardStatusDistributed).Error)

		_, err := service.ResetRewardForRetry(reward.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestSumDistributedAmount(t *testing.T) {
	db := setupTestDB(t)
	configService := NewConfigService(db, nil)
	service := NewRewardService(db, configService, new(MockWallet))
	tenantID := uuid.New()
	enabledConfig(t, db, tenantID)

	for i, status := range []models.RewardStatus{models.RewardStatusDistributed, models.RewardStatusDistributed, models.RewardStatusPending} {
		referral := convertedReferral(t, db, tenantID, uuid.New())
		reward, err := service.CreateReward(referral)
		require.NoError(t, err)
		require.NotNil(t, reward, "reward %d", i)
		require.NoError(t, db.Model(reward).Update("status", status).Error)
	}

	total, err := service.SumDistributedAmount(tenantID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "got %s", total)
}
