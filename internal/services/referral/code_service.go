package referral

import (
	"errors"
	"fmt"

	"github.com/fitcore/backend/internal/models"
	"github.com/fitcore/backend/internal/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	codeSuffixLength      = 6
	maxGenerationAttempts = 10
)

// CodeService owns per-member referral codes: lazy creation, lookups,
// activation toggles and the lifetime click/conversion counters.
type CodeService struct {
	db            *gorm.DB
	configService *ConfigService
}

// NewCodeService creates a new referral code service
func NewCodeService(db *gorm.DB, configService *ConfigService) *CodeService {
	return &CodeService{
		db:            db,
		configService: configService,
	}
}

// GetOrCreateCode returns the member's existing referral code, creating
// one with the tenant's configured prefix if none exists yet.
func (s *CodeService) GetOrCreateCode(tenantID, memberID uuid.UUID) (*models.ReferralCode, error) {
	var code models.ReferralCode
	err := s.db.Where("tenant_id = ? AND member_id = ?", tenantID, memberID).First(&code).Error
	if err == nil {
		return &code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error finding referral code: %w", err)
	}

	config, err := s.configService.GetConfig(tenantID)
	if err != nil {
		return nil, err
	}

	generated, err := s.generateUniqueCode(config.CodePrefix)
	if err != nil {
		return nil, err
	}

	code = models.ReferralCode{
		TenantID: tenantID,
		MemberID: memberID,
		Code:     generated,
		IsActive: true,
	}
	if err := s.db.Create(&code).Error; err != nil {
		return nil, fmt.Errorf("error creating referral code: %w", err)
	}

	return &code, nil
}

// GetByCode looks up a referral code by its code string. Returns nil
// without error on miss; callers decide whether absence is an error.
func (s *CodeService) GetByCode(code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := s.db.Where("code = ?", code).First(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding referral code: %w", err)
	}
	return &rc, nil
}

// GetByMemberID looks up a member's referral code. Returns nil without
// error on miss.
func (s *CodeService) GetByMemberID(tenantID, memberID uuid.UUID) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := s.db.Where("tenant_id = ? AND member_id = ?", tenantID, memberID).First(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding referral code: %w", err)
	}
	return &rc, nil
}

// ActivateCode makes a code eligible for future clicks
func (s *CodeService) ActivateCode(id uuid.UUID) (*models.ReferralCode, error) {
	return s.setActive(id, true)
}

// DeactivateCode stops a code from tracking further clicks. Referrals
// already tracked are unaffected.
func (s *CodeService) DeactivateCode(id uuid.UUID) (*models.ReferralCode, error) {
	return s.setActive(id, false)
}

func (s *CodeService) setActive(id uuid.UUID, active bool) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := s.db.First(&rc, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("error finding referral code: %w", err)
	}

	rc.IsActive = active
	if err := s.db.Save(&rc).Error; err != nil {
		return nil, fmt.Errorf("error updating referral code: %w", err)
	}
	return &rc, nil
}

// RecordClick increments the code's click counter if the code is
// currently active. Click tracking is best-effort and silently no-ops
// on an inactive code.
func (s *CodeService) RecordClick(id uuid.UUID) error {
	err := s.db.Model(&models.ReferralCode{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn("click_count", gorm.Expr("click_count + 1")).Error
	if err != nil {
		return fmt.Errorf("error recording click: %w", err)
	}
	return nil
}

// RecordConversion increments the code's conversion counter. Called only
// after a conversion has been confirmed by the tracking service.
func (s *CodeService) RecordConversion(id uuid.UUID) error {
	err := s.db.Model(&models.ReferralCode{}).
		Where("id = ?", id).
		UpdateColumn("conversion_count", gorm.Expr("conversion_count + 1")).Error
	if err != nil {
		return fmt.Errorf("error recording conversion: %w", err)
	}
	return nil
}

// ListCodes returns a page of referral codes for a tenant
func (s *CodeService) ListCodes(tenantID uuid.UUID, page, pageSize int) ([]models.ReferralCode, int64, error) {
	var codes []models.ReferralCode
	var total int64

	if err := s.db.Model(&models.ReferralCode{}).Where("tenant_id = ?", tenantID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting referral codes: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&codes).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding referral codes: %w", err)
	}

	return codes, total, nil
}

// GetTopReferrers returns the codes with the most conversions
func (s *CodeService) GetTopReferrers(tenantID uuid.UUID, limit int) ([]models.ReferralCode, error) {
	var codes []models.ReferralCode
	if err := s.db.Where("tenant_id = ?", tenantID).
		Order("conversion_count DESC").
		Limit(limit).
		Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("error finding top referrers: %w", err)
	}
	return codes, nil
}

// generateUniqueCode produces a prefixed random code, retrying on
// collision up to maxGenerationAttempts before giving up.
func (s *CodeService) generateUniqueCode(prefix string) (string, error) {
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		candidate := utils.GenerateReferralCode(prefix, codeSuffixLength)

		var count int64
		if err := s.db.Model(&models.ReferralCode{}).Where("code = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("error checking code uniqueness: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}
