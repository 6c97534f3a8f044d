package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies which handler processes a job
type JobType string

// Job is a unit of background work
type Job struct {
	ID        uuid.UUID       `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob creates a job with a marshaled payload
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:        uuid.New(),
		Type:      jobType,
		Payload:   data,
		CreatedAt: time.Now(),
	}, nil
}

// Handler processes a dequeued job
type Handler func(ctx context.Context, job Job) error

// Queue is the enqueue side of the job queue
type Queue interface {
	Enqueue(job *Job) error
}

// Dequeuer is the consume side of the job queue
type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}
