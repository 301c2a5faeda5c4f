package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeDistributeReward distributes a single referral reward
	JobTypeDistributeReward JobType = "distribute_referral_reward"
	// JobTypeProcessPendingRewards sweeps pending rewards in a batch
	JobTypeProcessPendingRewards JobType = "process_pending_rewards"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:3"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) (interface{}, error)

// Queue is a database-backed job queue
type Queue struct {
	db         *gorm.DB
	handlers   map[JobType]JobHandler
	processing atomic.Bool
}

// NewQueue creates a new queue
func NewQueue(db *gorm.DB) *Queue {
	return &Queue{
		db:       db,
		handlers: make(map[JobType]JobHandler),
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.handlers[jobType] = handler
}

// EnqueueJob adds a job to the queue
func (q *Queue) EnqueueJob(jobType JobType, payload interface{}) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:        uuid.New(),
		Type:      jobType,
		Payload:   payloadBytes,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := q.db.Create(&job).Error; err != nil {
		return "", err
	}

	return job.ID.String(), nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(jobID string) (*Job, error) {
	var job Job
	err := q.db.Where("id = ?", jobID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found")
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// StartProcessing starts processing jobs from the queue
func (q *Queue) StartProcessing() {
	if q.processing.Swap(true) {
		return
	}

	go func() {
		for q.processing.Load() {
			var job Job
			now := time.Now()
			err := q.db.Where("status = ? AND (next_retry IS NULL OR next_retry <= ?)", JobStatusPending, now).
				Order("created_at ASC").
				First(&job).Error
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("Error getting job from queue: %v", err)
				}
				time.Sleep(1 * time.Second)
				continue
			}

			q.processJob(job)
		}
	}()
}

// ProcessNext processes at most one due pending job; used by tests and
// callers that drive the queue synchronously. Returns false when no job
// was due.
func (q *Queue) ProcessNext() bool {
	var job Job
	now := time.Now()
	err := q.db.Where("status = ? AND (next_retry IS NULL OR next_retry <= ?)", JobStatusPending, now).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		return false
	}
	q.processJob(job)
	return true
}

func (q *Queue) processJob(job Job) {
	handler, ok := q.handlers[job.Type]
	if !ok {
		log.Printf("No handler registered for job type: %s", job.Type)
		q.update(&job, map[string]interface{}{
			"status": JobStatusFailed,
			"error":  fmt.Sprintf("no handler for job type %s", job.Type),
		})
		return
	}

	q.update(&job, map[string]interface{}{"status": JobStatusProcessing})

	result, err := handler(context.Background(), job)
	if err != nil {
		q.handleFailure(job, err)
		return
	}

	var resultJSON []byte
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			log.Printf("Failed to marshal job result: %v", err)
		}
	}

	q.update(&job, map[string]interface{}{
		"status": JobStatusCompleted,
		"result": resultJSON,
	})
}

// handleFailure either schedules a retry with exponential backoff or
// marks the job permanently failed once retries are exhausted.
func (q *Queue) handleFailure(job Job, cause error) {
	job.RetryCount++
	if job.RetryCount >= job.MaxRetries {
		q.update(&job, map[string]interface{}{
			"status":      JobStatusFailed,
			"retry_count": job.RetryCount,
			"error":       cause.Error(),
		})
		log.Printf("Job %s failed permanently after %d attempts: %v", job.ID, job.RetryCount, cause)
		return
	}

	nextRetry := time.Now().Add(backoff(job.RetryCount))
	q.update(&job, map[string]interface{}{
		"status":      JobStatusPending,
		"retry_count": job.RetryCount,
		"next_retry":  nextRetry,
		"error":       cause.Error(),
	})
	log.Printf("Job %s failed (attempt %d), retrying at %s: %v", job.ID, job.RetryCount, nextRetry.Format(time.RFC3339), cause)
}

func (q *Queue) update(job *Job, fields map[string]interface{}) {
	fields["updated_at"] = time.Now()
	if err := q.db.Model(job).Updates(fields).Error; err != nil {
		log.Printf("Failed to update job %s: %v", job.ID, err)
	}
}

// backoff computes the retry delay for an attempt: 5s base, doubling
// per attempt, capped at an hour.
func backoff(attempt int) time.Duration {
	d := 5 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= time.Hour {
			return time.Hour
		}
	}
	return d
}

// StopProcessing stops processing jobs
func (q *Queue) StopProcessing() {
	q.processing.Store(false)
}
