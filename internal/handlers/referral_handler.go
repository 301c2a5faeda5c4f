package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fitcore/backend/internal/middleware"
	"github.com/fitcore/backend/internal/models"
	"github.com/fitcore/backend/internal/services/referral"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReferralHandler handles referral program requests
type ReferralHandler struct {
	configService   *referral.ConfigService
	codeService     *referral.CodeService
	trackingService *referral.TrackingService
	rewardService   *referral.RewardService
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(configService *referral.ConfigService, codeService *referral.CodeService, trackingService *referral.TrackingService, rewardService *referral.RewardService) *ReferralHandler {
	return &ReferralHandler{
		configService:   configService,
		codeService:     codeService,
		trackingService: trackingService,
		rewardService:   rewardService,
	}
}

// GetConfig returns the tenant's referral program configuration
func (h *ReferralHandler) GetConfig(c *gin.Context) {
	config, err := h.configService.GetConfig(middleware.TenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral config"})
		return
	}
	c.JSON(http.StatusOK, config)
}

// UpdateConfig applies a full configuration update
func (h *ReferralHandler) UpdateConfig(c *gin.Context) {
	var input referral.UpdateConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config, err := h.configService.UpdateConfig(middleware.TenantID(c), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update referral config"})
		return
	}
	c.JSON(http.StatusOK, config)
}

// EnableProgram enables the referral program
func (h *ReferralHandler) EnableProgram(c *gin.Context) {
	config, err := h.configService.Enable(middleware.TenantID(c))
	if err != nil {
		if errors.Is(err, referral.ErrInvalidRewardConfig) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "reward configuration is incomplete"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enable referral program"})
		return
	}
	c.JSON(http.StatusOK, config)
}

// DisableProgram disables the referral program
func (h *ReferralHandler) DisableProgram(c *gin.Context) {
	config, err := h.configService.Disable(middleware.TenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disable referral program"})
		return
	}
	c.JSON(http.StatusOK, config)
}

// ListCodes lists the tenant's referral codes
func (h *ReferralHandler) ListCodes(c *gin.Context) {
	page, pageSize := pagination(c)
	codes, total, err := h.codeService.ListCodes(middleware.TenantID(c), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list referral codes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes, "total": total, "page": page, "page_size": pageSize})
}

// GetCode returns a member's referral code
func (h *ReferralHandler) GetCode(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member ID"})
		return
	}

	code, err := h.codeService.GetByMemberID(middleware.TenantID(c), memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral code"})
		return
	}
	if code == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "referral code not found"})
		return
	}
	c.JSON(http.StatusOK, code)
}

// ActivateCode activates a referral code
func (h *ReferralHandler) ActivateCode(c *gin.Context) {
	h.setCodeActive(c, true)
}

// DeactivateCode deactivates a referral code
func (h *ReferralHandler) DeactivateCode(c *gin.Context) {
	h.setCodeActive(c, false)
}

func (h *ReferralHandler) setCodeActive(c *gin.Context, active bool) {
	codeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code ID"})
		return
	}

	var code *models.ReferralCode
	if active {
		code, err = h.codeService.ActivateCode(codeID)
	} else {
		code, err = h.codeService.DeactivateCode(codeID)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "referral code not found"})
		return
	}
	c.JSON(http.StatusOK, code)
}

// ListReferrals lists the tenant's referrals, optionally by status
func (h *ReferralHandler) ListReferrals(c *gin.Context) {
	page, pageSize := pagination(c)
	status := models.ReferralStatus(c.Query("status"))

	referrals, total, err := h.trackingService.ListReferrals(middleware.TenantID(c), status, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list referrals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": referrals, "total": total, "page": page, "page_size": pageSize})
}

// GetReferral returns a referral by ID
func (h *ReferralHandler) GetReferral(c *gin.Context) {
	referralID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referral ID"})
		return
	}

	ref, err := h.trackingService.GetReferral(referralID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "referral not found"})
		return
	}
	c.JSON(http.StatusOK, ref)
}

// GetReferralRewards returns rewards linked to a referral
func (h *ReferralHandler) GetReferralRewards(c *gin.Context) {
	referralID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referral ID"})
		return
	}

	rewards, err := h.rewardService.GetReferralRewards(referralID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral rewards"})
		return
	}
	c.JSON(http.StatusOK, rewards)
}

// ListRewards lists the tenant's rewards, optionally by status
func (h *ReferralHandler) ListRewards(c *gin.Context) {
	page, pageSize := pagination(c)
	status := models.RewardStatus(c.Query("status"))

	rewards, total, err := h.rewardService.ListRewards(middleware.TenantID(c), status, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rewards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards, "total": total, "page": page, "page_size": pageSize})
}

// DistributeReward distributes a pending reward
func (h *ReferralHandler) DistributeReward(c *gin.Context) {
	rewardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reward ID"})
		return
	}

	reward, err := h.rewardService.DistributeReward(rewardID)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "reward is not pending"})
			return
		}
		var distErr *referral.DistributionError
		if errors.As(err, &distErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": distErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to distribute reward"})
		return
	}
	c.JSON(http.StatusOK, reward)
}

// CancelReward cancels a pending reward
func (h *ReferralHandler) CancelReward(c *gin.Context) {
	rewardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reward ID"})
		return
	}

	reward, err := h.rewardService.CancelReward(rewardID)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "reward is not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel reward"})
		return
	}
	c.JSON(http.StatusOK, reward)
}

// ResetReward moves a failed reward back to pending for retry
func (h *ReferralHandler) ResetReward(c *gin.Context) {
	rewardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reward ID"})
		return
	}

	reward, err := h.rewardService.ResetRewardForRetry(rewardID)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "reward cannot be reset"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset reward"})
		return
	}
	c.JSON(http.StatusOK, reward)
}

// ProcessPendingRewards drives a batch distribution of pending rewards
func (h *ReferralHandler) ProcessPendingRewards(c *gin.Context) {
	batchSize, err := strconv.Atoi(c.DefaultQuery("batch_size", "100"))
	if err != nil || batchSize <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch size"})
		return
	}

	processed, err := h.rewardService.ProcessPendingRewards(batchSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process pending rewards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

// GetAnalytics returns referral program analytics for the tenant
func (h *ReferralHandler) GetAnalytics(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	pending, err := h.trackingService.CountReferralsByStatus(tenantID, models.ReferralStatusPending)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	signups, err := h.trackingService.CountReferralsByStatus(tenantID, models.ReferralStatusSignedUp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	conversions, err := h.trackingService.CountReferralsByStatus(tenantID, models.ReferralStatusConverted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}

	total := pending + signups + conversions
	conversionRate := 0.0
	if total > 0 {
		conversionRate = float64(conversions) / float64(total)
	}

	totalDistributed, err := h.rewardService.SumDistributedAmount(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	pendingRewards, err := h.rewardService.CountRewardsByStatus(tenantID, models.RewardStatusPending)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	topReferrers, err := h.codeService.GetTopReferrers(tenantID, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending_referrals":         pending,
		"signed_up_referrals":       signups,
		"converted_referrals":       conversions,
		"overall_conversion_rate":   conversionRate,
		"total_rewards_distributed": totalDistributed,
		"pending_rewards":           pendingRewards,
		"top_referrers":             topReferrers,
	})
}

// GetLeaderboard returns the top referrers by conversions
func (h *ReferralHandler) GetLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	codes, err := h.codeService.GetTopReferrers(middleware.TenantID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}
	c.JSON(http.StatusOK, codes)
}

// GetMyCode returns (or lazily creates) the member's referral code
func (h *ReferralHandler) GetMyCode(c *gin.Context) {
	memberID, ok := memberIDFromQuery(c)
	if !ok {
		return
	}

	code, err := h.codeService.GetOrCreateCode(middleware.TenantID(c), memberID)
	if err != nil {
		if errors.Is(err, referral.ErrCodeGenerationExhausted) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not generate referral code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral code"})
		return
	}
	c.JSON(http.StatusOK, code)
}

// GetMyReferrals returns the member's referral history
func (h *ReferralHandler) GetMyReferrals(c *gin.Context) {
	memberID, ok := memberIDFromQuery(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	referrals, total, err := h.trackingService.GetReferralsByReferrer(middleware.TenantID(c), memberID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referrals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": referrals, "total": total, "page": page, "page_size": pageSize})
}

// GetMyStats returns the member's referral statistics
func (h *ReferralHandler) GetMyStats(c *gin.Context) {
	memberID, ok := memberIDFromQuery(c)
	if !ok {
		return
	}

	stats, err := h.trackingService.GetMemberStats(middleware.TenantID(c), memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetMyRewards returns the member's referral rewards
func (h *ReferralHandler) GetMyRewards(c *gin.Context) {
	memberID, ok := memberIDFromQuery(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	rewards, total, err := h.rewardService.GetMemberRewards(middleware.TenantID(c), memberID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rewards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards, "total": total, "page": page, "page_size": pageSize})
}

// TrackClick tracks a referral link click. An ineligible click is a
// normal outcome, reported as tracked=false, never an error.
func (h *ReferralHandler) TrackClick(c *gin.Context) {
	ref, err := h.trackingService.TrackClick(middleware.TenantID(c), c.Param("code"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to track click"})
		return
	}
	if ref == nil {
		c.JSON(http.StatusOK, gin.H{"tracked": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracked": true, "referral": ref})
}

// ValidateCode pre-validates a referral code without side effects
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	valid, err := h.trackingService.ValidateCode(middleware.TenantID(c), c.Param("code"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// MarkSignedUp links a registered member to a tracked referral
func (h *ReferralHandler) MarkSignedUp(c *gin.Context) {
	referralID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referral ID"})
		return
	}

	var body struct {
		MemberID uuid.UUID `json:"member_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := h.trackingService.MarkSignedUp(referralID, body.MemberID)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "referral has already converted"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "referral not found"})
		return
	}
	c.JSON(http.StatusOK, ref)
}

func memberIDFromQuery(c *gin.Context) (uuid.UUID, bool) {
	memberID, err := uuid.Parse(c.Query("member_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member ID"})
		return uuid.Nil, false
	}
	return memberID, true
}

func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
