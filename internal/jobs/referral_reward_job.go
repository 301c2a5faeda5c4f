package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/fitcore/backend/internal/queue"
	"github.com/fitcore/backend/internal/services/referral"
	"github.com/google/uuid"
)

// DistributeRewardPayload represents the payload for a single reward
// distribution job
type DistributeRewardPayload struct {
	RewardID uuid.UUID `json:"reward_id"`
}

// ProcessPendingRewardsPayload represents the payload for a pending
// reward sweep
type ProcessPendingRewardsPayload struct {
	BatchSize int `json:"batch_size"`
}

// ReferralRewardJob handles asynchronous referral reward distribution
type ReferralRewardJob struct {
	queue         *queue.Queue
	rewardService *referral.RewardService
	batchSize     int
}

// NewReferralRewardJob creates a new referral reward job handler and
// registers it with the queue
func NewReferralRewardJob(q *queue.Queue, rewardService *referral.RewardService, batchSize int) *ReferralRewardJob {
	j := &ReferralRewardJob{
		queue:         q,
		rewardService: rewardService,
		batchSize:     batchSize,
	}

	q.RegisterHandler(queue.JobTypeDistributeReward, j.distributeReward)
	q.RegisterHandler(queue.JobTypeProcessPendingRewards, j.processPendingRewards)

	return j
}

// EnqueueDistribution enqueues a distribution job for a single reward
func (j *ReferralRewardJob) EnqueueDistribution(rewardID uuid.UUID) error {
	_, err := j.queue.EnqueueJob(queue.JobTypeDistributeReward, DistributeRewardPayload{RewardID: rewardID})
	if err != nil {
		return fmt.Errorf("failed to enqueue reward distribution: %w", err)
	}
	return nil
}

// EnqueueSweep enqueues a pending-reward sweep
func (j *ReferralRewardJob) EnqueueSweep() error {
	_, err := j.queue.EnqueueJob(queue.JobTypeProcessPendingRewards, ProcessPendingRewardsPayload{BatchSize: j.batchSize})
	if err != nil {
		return fmt.Errorf("failed to enqueue pending reward sweep: %w", err)
	}
	return nil
}

// distributeReward processes a single reward distribution job
func (j *ReferralRewardJob) distributeReward(ctx context.Context, job queue.Job) (interface{}, error) {
	var payload DistributeRewardPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reward distribution payload: %w", err)
	}

	reward, err := j.rewardService.DistributeReward(payload.RewardID)
	if err != nil {
		return nil, err
	}

	log.Printf("Distributed referral reward %s", reward.ID)
	return map[string]string{"reward_id": reward.ID.String(), "status": string(reward.Status)}, nil
}

// processPendingRewards sweeps pending rewards in a batch. Individual
// reward failures are isolated inside the service; the job only fails
// on infrastructure errors.
func (j *ReferralRewardJob) processPendingRewards(ctx context.Context, job queue.Job) (interface{}, error) {
	var payload ProcessPendingRewardsPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending reward sweep payload: %w", err)
	}

	batchSize := payload.BatchSize
	if batchSize <= 0 {
		batchSize = j.batchSize
	}

	count, err := j.rewardService.ProcessPendingRewards(batchSize)
	if err != nil {
		return nil, err
	}

	log.Printf("Pending reward sweep distributed %d rewards", count)
	return map[string]int{"processed": count}, nil
}
