package referral

import (
	"fmt"
	"log"
	"time"

	"github.com/fitcore/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletCreditor is the external wallet collaborator. Any non-nil error
// is treated as a distribution failure.
type WalletCreditor interface {
	Credit(tenantID, memberID uuid.UUID, amount decimal.Decimal, currency, description string) error
}

// RewardService creates a reward record when a referral converts and
// distributes it, with per-reward failure isolation. It never mutates
// referral or code state; it only reads the triggering referral.
type RewardService struct {
	db            *gorm.DB
	configService *ConfigService
	wallet        WalletCreditor
}

// NewRewardService creates a new reward service
func NewRewardService(db *gorm.DB, configService *ConfigService, wallet WalletCreditor) *RewardService {
	return &RewardService{
		db:            db,
		configService: configService,
		wallet:        wallet,
	}
}

// CreateReward snapshots the tenant's current reward configuration into
// a pending reward for the referral's referrer. Returns nil when the
// program is disabled or the reward shape is invalid: a converted
// referral with no active program simply earns nothing.
func (s *RewardService) CreateReward(referral *models.Referral) (*models.ReferralReward, error) {
	config, err := s.configService.GetConfig(referral.TenantID)
	if err != nil {
		return nil, err
	}
	if !config.IsEnabled || !config.HasValidRewardShape() {
		return nil, nil
	}

	reward := models.ReferralReward{
		TenantID:   referral.TenantID,
		ReferralID: referral.ID,
		MemberID:   referral.ReferrerMemberID,
		RewardType: config.RewardType,
		Amount:     config.RewardAmount,
		Currency:   config.RewardCurrency,
		FreeDays:   config.RewardFreeDays,
		Status:     models.RewardStatusPending,
	}
	if err := s.db.Create(&reward).Error; err != nil {
		return nil, fmt.Errorf("error creating referral reward: %w", err)
	}

	return &reward, nil
}

// DistributeReward distributes a pending reward. Wallet credits invoke
// the external wallet collaborator; the other reward types are applied
// later by checkout logic reading the reward record, so distribution
// only marks them available. A wallet failure marks the reward failed
// before the error is returned, so an attempted reward is never lost.
func (s *RewardService) DistributeReward(rewardID uuid.UUID) (*models.ReferralReward, error) {
	var reward models.ReferralReward
	if err := s.db.First(&reward, "id = ?", rewardID).Error; err != nil {
		return nil, fmt.Errorf("error finding reward: %w", err)
	}

	if reward.Status != models.RewardStatusPending {
		return nil, ErrInvalidTransition
	}

	switch reward.RewardType {
	case models.RewardTypeWalletCredit:
		description := fmt.Sprintf("Referral reward for referral %s", reward.ReferralID)
		if err := s.wallet.Credit(reward.TenantID, reward.MemberID, reward.Amount, reward.Currency, description); err != nil {
			s.markFailed(&reward, err)
			return nil, &DistributionError{RewardID: reward.ID.String(), Err: err}
		}
	case models.RewardTypeFreeDays, models.RewardTypeDiscountPercent, models.RewardTypeDiscountAmount:
		// No external side effect: these are redeemed later by the
		// subscription/checkout flow reading the reward record.
	default:
		return nil, fmt.Errorf("unknown reward type: %s", reward.RewardType)
	}

	now := time.Now()
	result := s.db.Model(&models.ReferralReward{}).
		Where("id = ? AND status = ?", reward.ID, models.RewardStatusPending).
		Updates(map[string]interface{}{
			"status":         models.RewardStatusDistributed,
			"distributed_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("error updating reward status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	reward.Status = models.RewardStatusDistributed
	reward.DistributedAt = &now
	return &reward, nil
}

// ProcessPendingRewards fetches up to batchSize pending rewards and
// attempts to distribute each independently. A failure on one reward is
// logged and does not abort the batch. Returns the number distributed.
func (s *RewardService) ProcessPendingRewards(batchSize int) (int, error) {
	var rewards []models.ReferralReward
	if err := s.db.Where("status = ?", models.RewardStatusPending).
		Order("created_at ASC").
		Limit(batchSize).
		Find(&rewards).Error; err != nil {
		return 0, fmt.Errorf("error finding pending rewards: %w", err)
	}

	distributed := 0
	for _, reward := range rewards {
		if _, err := s.DistributeReward(reward.ID); err != nil {
			log.Printf("Failed to distribute reward %s: %v", reward.ID, err)
			continue
		}
		distributed++
	}

	return distributed, nil
}

// CancelReward cancels a still-pending reward. Fails with
// ErrInvalidTransition once the reward has been distributed or failed.
func (s *RewardService) CancelReward(rewardID uuid.UUID) (*models.ReferralReward, error) {
	var reward models.ReferralReward
	if err := s.db.First(&reward, "id = ?", rewardID).Error; err != nil {
		return nil, fmt.Errorf("error finding reward: %w", err)
	}

	result := s.db.Model(&models.ReferralReward{}).
		Where("id = ? AND status = ?", reward.ID, models.RewardStatusPending).
		Update("status", models.RewardStatusCancelled)
	if result.Error != nil {
		return nil, fmt.Errorf("error cancelling reward: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	reward.Status = models.RewardStatusCancelled
	return &reward, nil
}

// ResetRewardForRetry moves a failed reward back to pending so the
// batch driver can retry it. Idempotent: resetting an already-pending
// reward is a no-op.
func (s *RewardService) ResetRewardForRetry(rewardID uuid.UUID) (*models.ReferralReward, error) {
	var reward models.ReferralReward
	if err := s.db.First(&reward, "id = ?", rewardID).Error; err != nil {
		return nil, fmt.Errorf("error finding reward: %w", err)
	}

	if reward.Status == models.RewardStatusPending {
		return &reward, nil
	}

	result := s.db.Model(&models.ReferralReward{}).
		Where("id = ? AND status = ?", reward.ID, models.RewardStatusFailed).
		Updates(map[string]interface{}{
			"status":         models.RewardStatusPending,
			"failure_reason": "",
		})
	if result.Error != nil {
		return nil, fmt.Errorf("error resetting reward: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	reward.Status = models.RewardStatusPending
	reward.FailureReason = ""
	return &reward, nil
}

// GetReferralRewards returns all rewards linked to a referral
func (s *RewardService) GetReferralRewards(referralID uuid.UUID) ([]models.ReferralReward, error) {
	var rewards []models.ReferralReward
	if err := s.db.Where("referral_id = ?", referralID).Order("created_at DESC").Find(&rewards).Error; err != nil {
		return nil, fmt.Errorf("error finding referral rewards: %w", err)
	}
	return rewards, nil
}

// GetMemberRewards returns a page of a member's rewards
func (s *RewardService) GetMemberRewards(tenantID, memberID uuid.UUID, page, pageSize int) ([]models.ReferralReward, int64, error) {
	query := s.db.Model(&models.ReferralReward{}).Where("tenant_id = ? AND member_id = ?", tenantID, memberID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting rewards: %w", err)
	}

	var rewards []models.ReferralReward
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&rewards).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding rewards: %w", err)
	}

	return rewards, total, nil
}

// ListRewards returns a page of rewards for a tenant, optionally
// filtered by status
func (s *RewardService) ListRewards(tenantID uuid.UUID, status models.RewardStatus, page, pageSize int) ([]models.ReferralReward, int64, error) {
	query := s.db.Model(&models.ReferralReward{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting rewards: %w", err)
	}

	var rewards []models.ReferralReward
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&rewards).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding rewards: %w", err)
	}

	return rewards, total, nil
}

// CountRewardsByStatus counts a tenant's rewards in a given status
func (s *RewardService) CountRewardsByStatus(tenantID uuid.UUID, status models.RewardStatus) (int64, error) {
	var count int64
	if err := s.db.Model(&models.ReferralReward{}).
		Where("tenant_id = ? AND status = ?", tenantID, status).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting rewards: %w", err)
	}
	return count, nil
}

// SumDistributedAmount totals the amounts of distributed monetary
// rewards for a tenant
func (s *RewardService) SumDistributedAmount(tenantID uuid.UUID) (decimal.Decimal, error) {
	var rewards []models.ReferralReward
	if err := s.db.Where("tenant_id = ? AND status = ?", tenantID, models.RewardStatusDistributed).
		Find(&rewards).Error; err != nil {
		return decimal.Zero, fmt.Errorf("error finding distributed rewards: %w", err)
	}

	total := decimal.Zero
	for _, reward := range rewards {
		total = total.Add(reward.Amount)
	}
	return total, nil
}

func (s *RewardService) markFailed(reward *models.ReferralReward, cause error) {
	result := s.db.Model(&models.ReferralReward{}).
		Where("id = ? AND status = ?", reward.ID, models.RewardStatusPending).
		Updates(map[string]interface{}{
			"status":         models.RewardStatusFailed,
			"failure_reason": cause.Error(),
		})
	if result.Error != nil {
		log.Printf("Failed to mark reward %s as failed: %v", reward.ID, result.Error)
		return
	}
	reward.Status = models.RewardStatusFailed
	reward.FailureReason = cause.Error()
}
