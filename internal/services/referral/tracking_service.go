package referral

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fitcore/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// rewardCreator is the slice of the reward engine the tracker needs for
// the conversion hand-off.
type rewardCreator interface {
	CreateReward(referral *models.Referral) (*models.ReferralReward, error)
}

// TrackingService drives a referral from anonymous click to confirmed
// conversion. Every transition is gated by the code registry and the
// tenant's program configuration. Ordinary ineligibility (unknown code,
// inactive code, disabled program, cap reached) is a nil result, never
// an error.
type TrackingService struct {
	db            *gorm.DB
	codeService   *CodeService
	configService *ConfigService
	rewards       rewardCreator
}

// NewTrackingService creates a new tracking service. rewards may be nil
// when conversion should not create rewards (e.g. in isolation tests).
func NewTrackingService(db *gorm.DB, codeService *CodeService, configService *ConfigService, rewards rewardCreator) *TrackingService {
	return &TrackingService{
		db:            db,
		codeService:   codeService,
		configService: configService,
		rewards:       rewards,
	}
}

// TrackClick validates the code and, if eligible, increments the click
// counter and creates a new pending referral. Returns nil when the
// click does not qualify; only infrastructure failures return an error.
func (s *TrackingService) TrackClick(tenantID uuid.UUID, code string) (*models.Referral, error) {
	rc, eligible, err := s.checkEligibility(tenantID, code)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, nil
	}

	if err := s.codeService.RecordClick(rc.ID); err != nil {
		return nil, err
	}

	referral := models.Referral{
		TenantID:         tenantID,
		ReferralCodeID:   rc.ID,
		ReferrerMemberID: rc.MemberID,
		Status:           models.ReferralStatusPending,
	}
	if err := s.db.Create(&referral).Error; err != nil {
		return nil, fmt.Errorf("error creating referral: %w", err)
	}

	return &referral, nil
}

// MarkSignedUp records the referred person's registration against a
// tracked referral. Fails with ErrInvalidTransition when the referral
// has already converted.
func (s *TrackingService) MarkSignedUp(referralID, refereeMemberID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := s.db.First(&referral, "id = ?", referralID).Error; err != nil {
		return nil, fmt.Errorf("error finding referral: %w", err)
	}

	// Compare-and-set on status so a signup racing a conversion can
	// never drag a converted referral back to signed_up.
	result := s.db.Model(&models.Referral{}).
		Where("id = ? AND status IN ?", referral.ID, []models.ReferralStatus{models.ReferralStatusPending, models.ReferralStatusSignedUp}).
		Updates(map[string]interface{}{
			"referee_member_id": refereeMemberID,
			"status":            models.ReferralStatusSignedUp,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("error updating referral: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	referral.RefereeMemberID = &refereeMemberID
	referral.Status = models.ReferralStatusSignedUp
	return &referral, nil
}

// ConvertReferral closes the referral loop when the referred member
// completes a paid subscription purchase. Returns nil when the member
// has no tracked referral or the referral already converted; neither is
// fatal to the caller's purchase flow. On success it updates the code's
// conversion counter and triggers reward creation as an independent
// step whose failure never rolls back the conversion.
func (s *TrackingService) ConvertReferral(tenantID, refereeMemberID, subscriptionID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	err := s.db.Where("tenant_id = ? AND referee_member_id = ?", tenantID, refereeMemberID).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding referral: %w", err)
	}

	if !referral.CanConvert() {
		log.Printf("Referral %s for member %s is not convertible (status %s)", referral.ID, refereeMemberID, referral.Status)
		return nil, nil
	}

	// Compare-and-set on status so that of two concurrent conversions
	// only one wins; the loser observes a no-op, not a double reward.
	now := time.Now()
	result := s.db.Model(&models.Referral{}).
		Where("id = ? AND status IN ?", referral.ID, []models.ReferralStatus{models.ReferralStatusPending, models.ReferralStatusSignedUp}).
		Updates(map[string]interface{}{
			"status":          models.ReferralStatusConverted,
			"subscription_id": subscriptionID,
			"converted_at":    now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("error converting referral: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	referral.Status = models.ReferralStatusConverted
	referral.SubscriptionID = &subscriptionID
	referral.ConvertedAt = &now

	if err := s.codeService.RecordConversion(referral.ReferralCodeID); err != nil {
		log.Printf("Failed to record conversion on code %s: %v", referral.ReferralCodeID, err)
	}

	if s.rewards != nil {
		if _, err := s.rewards.CreateReward(&referral); err != nil {
			log.Printf("Failed to create reward for referral %s: %v", referral.ID, err)
		}
	}

	return &referral, nil
}

// ValidateCode is a side-effect-free predicate combining the same
// eligibility checks as TrackClick, for pre-validation during signup.
func (s *TrackingService) ValidateCode(tenantID uuid.UUID, code string) (bool, error) {
	_, eligible, err := s.checkEligibility(tenantID, code)
	if err != nil {
		return false, err
	}
	return eligible, nil
}

// GetReferral returns a referral by ID
func (s *TrackingService) GetReferral(id uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := s.db.First(&referral, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("error finding referral: %w", err)
	}
	return &referral, nil
}

// ListReferrals returns a page of referrals for a tenant, optionally
// filtered by status
func (s *TrackingService) ListReferrals(tenantID uuid.UUID, status models.ReferralStatus, page, pageSize int) ([]models.Referral, int64, error) {
	query := s.db.Model(&models.Referral{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting referrals: %w", err)
	}

	var referrals []models.Referral
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&referrals).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding referrals: %w", err)
	}

	return referrals, total, nil
}

// GetReferralsByReferrer returns a page of a member's referrals
func (s *TrackingService) GetReferralsByReferrer(tenantID, memberID uuid.UUID, page, pageSize int) ([]models.Referral, int64, error) {
	query := s.db.Model(&models.Referral{}).Where("tenant_id = ? AND referrer_member_id = ?", tenantID, memberID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting referrals: %w", err)
	}

	var referrals []models.Referral
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&referrals).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding referrals: %w", err)
	}

	return referrals, total, nil
}

// CountReferralsByStatus counts a tenant's referrals in a given status
func (s *TrackingService) CountReferralsByStatus(tenantID uuid.UUID, status models.ReferralStatus) (int64, error) {
	var count int64
	if err := s.db.Model(&models.Referral{}).
		Where("tenant_id = ? AND status = ?", tenantID, status).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting referrals: %w", err)
	}
	return count, nil
}

// GetMemberStats computes the read-only referral aggregate for a
// referrer. Conversion rate is conversions over clicks, zero when the
// member has no clicks.
func (s *TrackingService) GetMemberStats(tenantID, memberID uuid.UUID) (*models.ReferralStats, error) {
	stats := &models.ReferralStats{}

	rc, err := s.codeService.GetByMemberID(tenantID, memberID)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stats.Code = rc.Code
		stats.ClickCount = rc.ClickCount
	}

	if err := s.db.Model(&models.Referral{}).
		Where("tenant_id = ? AND referrer_member_id = ?", tenantID, memberID).
		Count(&stats.TotalReferrals).Error; err != nil {
		return nil, fmt.Errorf("error counting referrals: %w", err)
	}

	if err := s.db.Model(&models.Referral{}).
		Where("tenant_id = ? AND referrer_member_id = ? AND status = ?", tenantID, memberID, models.ReferralStatusConverted).
		Count(&stats.Conversions).Error; err != nil {
		return nil, fmt.Errorf("error counting conversions: %w", err)
	}

	if stats.ClickCount > 0 {
		stats.ConversionRate = float64(stats.Conversions) / float64(stats.ClickCount)
	}

	return stats, nil
}

// checkEligibility runs the shared gating checks for TrackClick and
// ValidateCode, in order: code exists, code active, program enabled,
// referrer's subscription old enough, referrer under the conversion cap.
func (s *TrackingService) checkEligibility(tenantID uuid.UUID, code string) (*models.ReferralCode, bool, error) {
	rc, err := s.codeService.GetByCode(code)
	if err != nil {
		return nil, false, err
	}
	if rc == nil || !rc.IsActive {
		return nil, false, nil
	}

	config, err := s.configService.GetConfig(tenantID)
	if err != nil {
		return nil, false, err
	}
	if !config.IsEnabled {
		return nil, false, nil
	}

	if config.MinSubscriptionAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -config.MinSubscriptionAgeDays)
		var count int64
		if err := s.db.Model(&models.Subscription{}).
			Where("tenant_id = ? AND member_id = ? AND status = ? AND start_date <= ?",
				tenantID, rc.MemberID, models.SubscriptionStatusActive, cutoff).
			Count(&count).Error; err != nil {
			return nil, false, fmt.Errorf("error checking referrer subscription age: %w", err)
		}
		if count == 0 {
			return nil, false, nil
		}
	}

	if config.MaxReferralsPerMember != nil {
		var converted int64
		if err := s.db.Model(&models.Referral{}).
			Where("tenant_id = ? AND referrer_member_id = ? AND status = ?", tenantID, rc.MemberID, models.ReferralStatusConverted).
			Count(&converted).Error; err != nil {
			return nil, false, fmt.Errorf("error counting converted referrals: %w", err)
		}
		if converted >= int64(*config.MaxReferralsPerMember) {
			return nil, false, nil
		}
	}

	return rc, true, nil
}
