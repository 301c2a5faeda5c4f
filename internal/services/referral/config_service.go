package referral

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fitcore/backend/internal/cache"
	"github.com/fitcore/backend/internal/models"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const configCacheTTL = 5 * time.Minute

// UpdateConfigInput carries a full update of the program configuration.
// Enablement is validated separately by Enable, not here.
type UpdateConfigInput struct {
	CodePrefix             string            `json:"code_prefix"`
	RewardType             models.RewardType `json:"reward_type"`
	RewardAmount           decimal.Decimal   `json:"reward_amount"`
	RewardCurrency         string            `json:"reward_currency"`
	RewardFreeDays         int               `json:"reward_free_days"`
	MinSubscriptionAgeDays int               `json:"min_subscription_age_days"`
	MaxReferralsPerMember  *int              `json:"max_referrals_per_member"`
}

// configCache is the slice of the cache layer the config service uses
type configCache interface {
	Get(key string, dest interface{}) error
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
}

// ConfigService manages the per-tenant referral program configuration.
// Config is read-mostly: the tracking and reward paths only read it, so
// reads go through a short-TTL cache when one is configured.
type ConfigService struct {
	db    *gorm.DB
	cache configCache
}

// NewConfigService creates a new config service. The cache may be nil.
func NewConfigService(db *gorm.DB, c *cache.Cache) *ConfigService {
	s := &ConfigService{db: db}
	if c != nil {
		s.cache = c
	}
	return s
}

// GetConfig returns the tenant's program configuration, creating the
// default (disabled) row on first access.
func (s *ConfigService) GetConfig(tenantID uuid.UUID) (*models.ReferralProgramConfig, error) {
	if s.cache != nil {
		var cached models.ReferralProgramConfig
		if err := s.cache.Get(s.cacheKey(tenantID), &cached); err == nil {
			return &cached, nil
		}
	}

	config, err := s.loadConfig(tenantID)
	if err != nil {
		return nil, err
	}

	s.cacheConfig(config)
	return config, nil
}

// loadConfig reads the tenant's configuration from the database,
// creating the disabled default row on first access. Admin mutations
// go through this instead of GetConfig so a stale cached copy is never
// written back.
func (s *ConfigService) loadConfig(tenantID uuid.UUID) (*models.ReferralProgramConfig, error) {
	var config models.ReferralProgramConfig
	err := s.db.Where("tenant_id = ?", tenantID).First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		config = models.ReferralProgramConfig{
			TenantID:   tenantID,
			IsEnabled:  false,
			CodePrefix: "REF",
			RewardType: models.RewardTypeWalletCredit,
		}
		if err := s.db.Create(&config).Error; err != nil {
			return nil, fmt.Errorf("error creating referral config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("error finding referral config: %w", err)
	}
	return &config, nil
}

// UpdateConfig applies a full update of prefix, reward shape and caps
func (s *ConfigService) UpdateConfig(tenantID uuid.UUID, input UpdateConfigInput) (*models.ReferralProgramConfig, error) {
	config, err := s.loadConfig(tenantID)
	if err != nil {
		return nil, err
	}

	config.CodePrefix = normalizePrefix(input.CodePrefix)
	config.RewardType = input.RewardType
	config.RewardAmount = input.RewardAmount
	config.RewardCurrency = strings.ToUpper(input.RewardCurrency)
	config.RewardFreeDays = input.RewardFreeDays
	config.MinSubscriptionAgeDays = input.MinSubscriptionAgeDays
	config.MaxReferralsPerMember = input.MaxReferralsPerMember

	if err := s.db.Save(config).Error; err != nil {
		return nil, fmt.Errorf("error updating referral config: %w", err)
	}

	s.invalidate(tenantID)
	return config, nil
}

// Enable switches the program on. Fails with ErrInvalidRewardConfig
// unless the current reward shape is structurally complete.
func (s *ConfigService) Enable(tenantID uuid.UUID) (*models.ReferralProgramConfig, error) {
	config, err := s.loadConfig(tenantID)
	if err != nil {
		return nil, err
	}

	if !config.HasValidRewardShape() {
		return nil, ErrInvalidRewardConfig
	}

	config.IsEnabled = true
	if err := s.db.Save(config).Error; err != nil {
		return nil, fmt.Errorf("error enabling referral program: %w", err)
	}

	s.invalidate(tenantID)
	return config, nil
}

// Disable switches the program off. Always permitted, idempotent.
func (s *ConfigService) Disable(tenantID uuid.UUID) (*models.ReferralProgramConfig, error) {
	config, err := s.loadConfig(tenantID)
	if err != nil {
		return nil, err
	}

	config.IsEnabled = false
	if err := s.db.Save(config).Error; err != nil {
		return nil, fmt.Errorf("error disabling referral program: %w", err)
	}

	s.invalidate(tenantID)
	return config, nil
}

func (s *ConfigService) cacheKey(tenantID uuid.UUID) string {
	return "referral:config:" + tenantID.String()
}

func (s *ConfigService) cacheConfig(config *models.ReferralProgramConfig) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(s.cacheKey(config.TenantID), config, configCacheTTL); err != nil {
		log.Printf("Failed to cache referral config for tenant %s: %v", config.TenantID, err)
	}
}

func (s *ConfigService) invalidate(tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(s.cacheKey(tenantID)); err != nil {
		log.Printf("Failed to invalidate referral config cache for tenant %s: %v", tenantID, err)
	}
}

// normalizePrefix sanitizes a tenant-supplied code prefix into an
// uppercase alphanumeric slug, falling back to the default.
func normalizePrefix(prefix string) string {
	cleaned := strings.ToUpper(slug.Make(prefix))
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	if cleaned == "" {
		return "REF"
	}
	if len(cleaned) > 10 {
		cleaned = cleaned[:10]
	}
	return cleaned
}
