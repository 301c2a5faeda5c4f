package jobs

import (
	"log"
	"time"

	"github.com/fitcore/backend/internal/queue"
	"github.com/fitcore/backend/internal/services/referral"
	"github.com/go-co-op/gocron"
)

// RegisterAllJobHandlers registers all job handlers with the queue
func RegisterAllJobHandlers(q *queue.Queue, rewardService *referral.RewardService, rewardBatchSize int) *ReferralRewardJob {
	return NewReferralRewardJob(q, rewardService, rewardBatchSize)
}

// ScheduleRecurringJobs schedules the recurring pending-reward sweep.
// The sweep is the retry path for wallet credits that failed
// transiently and were reset to pending.
func ScheduleRecurringJobs(rewardJob *ReferralRewardJob, sweepInterval time.Duration) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)

	if _, err := scheduler.Every(sweepInterval).Do(func() {
		if err := rewardJob.EnqueueSweep(); err != nil {
			log.Printf("Failed to enqueue pending reward sweep: %v", err)
		}
	}); err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	return scheduler, nil
}
