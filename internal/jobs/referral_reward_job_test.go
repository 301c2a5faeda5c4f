package jobs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fitcore/backend/internal/models"
	"github.com/fitcore/backend/internal/queue"
	"github.com/fitcore/backend/internal/services/referral"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubWallet struct {
	err     error
	credits int
}

func (w *stubWallet) Credit(tenantID, memberID uuid.UUID, amount decimal.Decimal, currency, description string) error {
	w.credits++
	return w.err
}

type jobFixture struct {
	db     *gorm.DB
	queue  *queue.Queue
	wallet *stubWallet
	job    *ReferralRewardJob
}

func setupJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ReferralCode{},
		&models.Referral{},
		&models.ReferralProgramConfig{},
		&models.ReferralReward{},
		&queue.Job{},
	))

	wallet := &stubWallet{}
	configService := referral.NewConfigService(db, nil)
	rewardService := referral.NewRewardService(db, configService, wallet)
	q := queue.NewQueue(db)

	return &jobFixture{
		db:     db,
		queue:  q,
		wallet: wallet,
		job:    NewReferralRewardJob(q, rewardService, 100),
	}
}

func (f *jobFixture) pendingReward(t *testing.T, tenantID uuid.UUID) *models.ReferralReward {
	t.Helper()

	refereeID := uuid.New()
	referral := &models.Referral{
		TenantID:         tenantID,
		ReferralCodeID:   uuid.New(),
		ReferrerMemberID: uuid.New(),
		RefereeMemberID:  &refereeID,
		Status:           models.ReferralStatusConverted,
	}
	require.NoError(t, f.db.Create(referral).Error)

	reward := &models.ReferralReward{
		TenantID:   tenantID,
		ReferralID: referral.ID,
		MemberID:   referral.ReferrerMemberID,
		RewardType: models.RewardTypeWalletCredit,
		Amount:     decimal.NewFromInt(50),
		Currency:   "SAR",
		Status:     models.RewardStatusPending,
	}
	require.NoError(t, f.db.Create(reward).Error)
	return reward
}

func TestDistributeRewardJob(t *testing.T) {
	f := setupJobFixture(t)
	tenantID := uuid.New()
	reward := f.pendingReward(t, tenantID)

	require.NoError(t, f.job.EnqueueDistribution(reward.ID))
	require.True(t, f.queue.ProcessNext())

	assert.Equal(t, 1, f.wallet.credits)

	var reloaded models.ReferralReward
	require.NoError(t, f.db.First(&reloaded, "id = ?", reward.ID).Error)
	assert.Equal(t, models.RewardStatusDistributed, reloaded.Status)
}

func TestDistributeRewardJobRetriesOnFailure(t *testing.T) {
	f := setupJobFixture(t)
	f.wallet.err = assert.AnError
	tenantID := uuid.New()
	reward := f.pendingReward(t, tenantID)

	require.NoError(t, f.job.EnqueueDistribution(reward.ID))
	require.True(t, f.queue.ProcessNext())

	// the reward is failed and the job rescheduled
	var reloaded models.ReferralReward
	require.NoError(t, f.db.First(&reloaded, "id = ?", reward.ID).Error)
	assert.Equal(t, models.RewardStatusFailed, reloaded.Status)

	var job queue.Job
	require.NoError(t, f.db.First(&job, "type = ?", queue.JobTypeDistributeReward).Error)
	assert.Equal(t, queue.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
}

func TestPendingRewardSweepJob(t *testing.T) {
	f := setupJobFixture(t)
	tenantID := uuid.New()
	for i := 0; i < 3; i++ {
		f.pendingReward(t, tenantID)
	}

	require.NoError(t, f.job.EnqueueSweep())
	require.True(t, f.queue.ProcessNext())

	assert.Equal(t, 3, f.wallet.credits)

	var pending int64
	require.NoError(t, f.db.Model(&models.ReferralReward{}).
		Where("status = ?", models.RewardStatusPending).
		Count(&pending).Error)
	assert.Equal(t, int64(0), pending)
}
