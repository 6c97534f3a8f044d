package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-co-op/gocron"
	"github.com/starbank/backend/internal/models"
	"github.com/starbank/backend/internal/queue"
	"github.com/starbank/backend/internal/services/withdrawal"
)

// SettleWithdrawalJobType is the job type for settling one pending request
const SettleWithdrawalJobType queue.JobType = "settle_withdrawal"

// SettleWithdrawalPayload carries the request to settle
type SettleWithdrawalPayload struct {
	RequestID uint `json:"request_id"`
}

// SettlementJob periodically sweeps pending automatic withdrawals onto the
// queue, oldest first, and settles each one as it is consumed. All business
// decisions live in the withdrawal service; payout failures are terminal and
// never retried here.
type SettlementJob struct {
	withdrawals *withdrawal.Service
	q           queue.Queue
	batchLimit  int
}

// NewSettlementJob creates the settlement job and registers its handler
func NewSettlementJob(withdrawals *withdrawal.Service, q queue.Queue, worker *queue.Worker, batchLimit int) *SettlementJob {
	job := &SettlementJob{
		withdrawals: withdrawals,
		q:           q,
		batchLimit:  batchLimit,
	}
	worker.RegisterHandler(SettleWithdrawalJobType, job.handleSettle)
	return job
}

// Schedule runs the sweep on a fixed period
func (j *SettlementJob) Schedule(scheduler *gocron.Scheduler, everySeconds int) error {
	_, err := scheduler.Every(everySeconds).Seconds().Do(func() {
		if err := j.EnqueuePending(); err != nil {
			log.Printf("error sweeping pending withdrawals: %v", err)
		}
	})
	return err
}

// EnqueuePending enqueues every pending automatic request, oldest first
func (j *SettlementJob) EnqueuePending() error {
	pending, err := j.withdrawals.PendingAutoPayouts(j.batchLimit)
	if err != nil {
		return fmt.Errorf("error listing pending withdrawals: %w", err)
	}

	for _, request := range pending {
		job, err := queue.NewJob(SettleWithdrawalJobType, SettleWithdrawalPayload{RequestID: request.ID})
		if err != nil {
			return fmt.Errorf("error building settle job: %w", err)
		}
		if err := j.q.Enqueue(job); err != nil {
			return fmt.Errorf("error enqueueing settle job: %w", err)
		}
	}

	if len(pending) > 0 {
		log.Printf("enqueued %d pending withdrawals for settlement", len(pending))
	}
	return nil
}

func (j *SettlementJob) handleSettle(ctx context.Context, job queue.Job) error {
	var payload SettleWithdrawalPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("error unmarshaling settle payload: %w", err)
	}

	request, err := j.withdrawals.SettleAuto(ctx, payload.RequestID)
	if err != nil {
		// A request settled by a racing admin action is not a failure worth
		// logging as one.
		if errors.Is(err, withdrawal.ErrInvalidState) {
			return nil
		}
		return fmt.Errorf("error settling withdrawal %d: %w", payload.RequestID, err)
	}

	switch request.Status {
	case models.WithdrawalStatusApproved:
		log.Printf("withdrawal %d approved: %d paid out to user %d", request.ID, request.Amount, request.UserID)
	case models.WithdrawalStatusRejected:
		log.Printf("withdrawal %d rejected: insufficient balance for user %d", request.ID, request.UserID)
	}
	return nil
}
