package main

import (
	"fmt"
	"log"
	"time"

	"github.com/fitcore/backend/internal/cache"
	"github.com/fitcore/backend/internal/config"
	"github.com/fitcore/backend/internal/database"
	"github.com/fitcore/backend/internal/database/migrations"
	"github.com/fitcore/backend/internal/handlers"
	"github.com/fitcore/backend/internal/jobs"
	"github.com/fitcore/backend/internal/queue"
	"github.com/fitcore/backend/internal/routes"
	"github.com/fitcore/backend/internal/services/referral"
	"github.com/fitcore/backend/internal/services/subscription"
	"github.com/fitcore/backend/internal/services/wallet"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to auto-migrate schema: %v", err)
	}

	configCache, err := cache.NewCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Warning: Redis unavailable, running without config cache: %v", err)
	}

	// Services
	configService := referral.NewConfigService(db, configCache)
	codeService := referral.NewCodeService(db, configService)
	walletService := wallet.NewWalletService(db)
	rewardService := referral.NewRewardService(db, configService, walletService)
	trackingService := referral.NewTrackingService(db, codeService, configService, rewardService)
	subscriptionService := subscription.NewSubscriptionService(db, trackingService, rewardService)

	// Background jobs
	jobQueue := queue.NewQueue(db)
	rewardJob := jobs.RegisterAllJobHandlers(jobQueue, rewardService, cfg.Referral.RewardBatchSize)
	jobQueue.StartProcessing()

	scheduler, err := jobs.ScheduleRecurringJobs(rewardJob, time.Duration(cfg.Referral.SweepIntervalMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("Failed to schedule recurring jobs: %v", err)
	}
	defer scheduler.Stop()

	// HTTP
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Tenant-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	referralHandler := handlers.NewReferralHandler(configService, codeService, trackingService, rewardService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	routes.RegisterRoutes(router, referralHandler, subscriptionHandler)

	fmt.Printf("FitCore API server running on port %s\n", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
