package subscription

import (
	"fmt"
	"log"
	"time"

	"github.com/fitcore/backend/internal/models"
	"github.com/fitcore/backend/internal/services/referral"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateSubscriptionInput carries a subscription purchase
type CreateSubscriptionInput struct {
	MemberID uuid.UUID       `json:"member_id" binding:"required"`
	PlanName string          `json:"plan_name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Months   int             `json:"months"`
}

// SubscriptionService activates member subscriptions. On purchase it
// triggers referral conversion and reward distribution; referral
// processing failures are logged and never block the purchase itself.
type SubscriptionService struct {
	db              *gorm.DB
	trackingService *referral.TrackingService
	rewardService   *referral.RewardService
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(db *gorm.DB, trackingService *referral.TrackingService, rewardService *referral.RewardService) *SubscriptionService {
	return &SubscriptionService{
		db:              db,
		trackingService: trackingService,
		rewardService:   rewardService,
	}
}

// CreateSubscription records a paid subscription purchase and closes
// the member's referral loop if they arrived via a referral.
func (s *SubscriptionService) CreateSubscription(tenantID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, error) {
	months := input.Months
	if months <= 0 {
		months = 1
	}

	start := time.Now()
	end := start.AddDate(0, months, 0)
	sub := models.Subscription{
		TenantID:  tenantID,
		MemberID:  input.MemberID,
		PlanName:  input.PlanName,
		Price:     input.Price,
		Currency:  input.Currency,
		Status:    models.SubscriptionStatusActive,
		StartDate: start,
		EndDate:   &end,
	}
	if err := s.db.Create(&sub).Error; err != nil {
		return nil, fmt.Errorf("error creating subscription: %w", err)
	}

	s.processReferralConversion(tenantID, input.MemberID, sub.ID)

	return &sub, nil
}

// processReferralConversion converts the member's referral, if any, and
// attempts to distribute the resulting reward. Both steps are isolated:
// the subscription purchase is authoritative regardless of reward
// success.
func (s *SubscriptionService) processReferralConversion(tenantID, memberID, subscriptionID uuid.UUID) {
	converted, err := s.trackingService.ConvertReferral(tenantID, memberID, subscriptionID)
	if err != nil {
		log.Printf("Error processing referral conversion for member %s: %v", memberID, err)
		return
	}
	if converted == nil {
		return
	}
	log.Printf("Converted referral %s for member %s", converted.ID, memberID)

	rewards, err := s.rewardService.GetReferralRewards(converted.ID)
	if err != nil {
		log.Printf("Error loading rewards for referral %s: %v", converted.ID, err)
		return
	}
	for _, reward := range rewards {
		if reward.Status != models.RewardStatusPending {
			continue
		}
		if _, err := s.rewardService.DistributeReward(reward.ID); err != nil {
			log.Printf("Failed to distribute referral reward %s: %v", reward.ID, err)
			continue
		}
		log.Printf("Distributed referral reward %s", reward.ID)
	}
}

// GetSubscription returns a subscription by ID
func (s *SubscriptionService) GetSubscription(id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.First(&sub, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("error finding subscription: %w", err)
	}
	return &sub, nil
}
