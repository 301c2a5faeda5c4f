package routes

import (
	"github.com/fitcore/backend/internal/handlers"
	"github.com/fitcore/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, referralHandler *handlers.ReferralHandler, subscriptionHandler *handlers.SubscriptionHandler) {
	api := router.Group("/api")
	api.Use(middleware.TenantMiddleware())

	// Public referral endpoints used by signup flows
	public := api.Group("/referral")
	{
		public.POST("/track/:code", referralHandler.TrackClick)
		public.GET("/validate/:code", referralHandler.ValidateCode)
	}

	// Referral program administration
	admin := api.Group("/referral")
	{
		admin.GET("/config", referralHandler.GetConfig)
		admin.PUT("/config", referralHandler.UpdateConfig)
		admin.POST("/config/enable", referralHandler.EnableProgram)
		admin.POST("/config/disable", referralHandler.DisableProgram)

		admin.GET("/codes", referralHandler.ListCodes)
		admin.GET("/codes/:id", referralHandler.GetCode)
		admin.POST("/codes/:id/activate", referralHandler.ActivateCode)
		admin.POST("/codes/:id/deactivate", referralHandler.DeactivateCode)

		admin.GET("/referrals", referralHandler.ListReferrals)
		admin.GET("/referrals/:id", referralHandler.GetReferral)
		admin.GET("/referrals/:id/rewards", referralHandler.GetReferralRewards)
		admin.POST("/referrals/:id/signup", referralHandler.MarkSignedUp)

		admin.GET("/rewards", referralHandler.ListRewards)
		admin.POST("/rewards/:id/distribute", referralHandler.DistributeReward)
		admin.POST("/rewards/:id/cancel", referralHandler.CancelReward)
		admin.POST("/rewards/:id/reset", referralHandler.ResetReward)
		admin.POST("/rewards/process-pending", referralHandler.ProcessPendingRewards)

		admin.GET("/analytics", referralHandler.GetAnalytics)
		admin.GET("/leaderboard", referralHandler.GetLeaderboard)

		// Member self-service endpoints
		admin.GET("/my-code", referralHandler.GetMyCode)
		admin.GET("/my-referrals", referralHandler.GetMyReferrals)
		admin.GET("/my-stats", referralHandler.GetMyStats)
		admin.GET("/my-rewards", referralHandler.GetMyRewards)
	}

	subscriptions := api.Group("/subscriptions")
	{
		subscriptions.POST("", subscriptionHandler.CreateSubscription)
		subscriptions.GET("/:id", subscriptionHandler.GetSubscription)
	}
}
