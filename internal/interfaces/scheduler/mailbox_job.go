package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"chreosis/internal/domain/mailbox"
)

// MailboxProcessor is the part of mailbox.Service the jobs need.
type MailboxProcessor interface {
	Process(ctx context.Context, mailboxID int64) (mailbox.Outcome, error)
	RenewWatches(ctx context.Context, within time.Duration) (int, error)
}

// MailboxJob processes the latest message of one mailbox after a push.
type MailboxJob struct {
	mailboxID int64
	userID    int64
	processor MailboxProcessor
}

func NewMailboxJob(mailboxID, userID int64, processor MailboxProcessor) *MailboxJob {
	return &MailboxJob{mailboxID: mailboxID, userID: userID, processor: processor}
}

func (j *MailboxJob) Execute(ctx context.Context) error {
	outcome, err := j.processor.Process(ctx, j.mailboxID)
	if err != nil {
		return fmt.Errorf("mailbox %d: %w", j.mailboxID, err)
	}
	log.Info().Int64("mailbox_id", j.mailboxID).Str("outcome", string(outcome)).Msg("Mailbox processed")
	return nil
}

func (j *MailboxJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

func (j *MailboxJob) Description() string {
	return fmt.Sprintf("Mailbox %d", j.mailboxID)
}

// MailboxQueue hands push notifications to the worker pool.
type MailboxQueue struct {
	pool      *WorkerPool
	processor MailboxProcessor
}

func NewMailboxQueue(pool *WorkerPool, processor MailboxProcessor) *MailboxQueue {
	return &MailboxQueue{pool: pool, processor: processor}
}

// Enqueue returns ErrQueueFull when the pool cannot take the job, so the push
// can be retried by the sender.
func (q *MailboxQueue) Enqueue(mailboxID, userID int64) error {
	return q.pool.Submit(NewMailboxJob(mailboxID, userID, q.processor))
}

// WatchRenewalProvider returns a JobProvider that renews Gmail watches
// expiring within the given window.
func WatchRenewalProvider(processor MailboxProcessor, within time.Duration) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		return []Job{JobFunc{
			Name: "Gmail watch renewal",
			Fn: func(ctx context.Context) error {
				renewed, err := processor.RenewWatches(ctx, within)
				log.Info().Int("renewed", renewed).Msg("Gmail watches renewed")
				return err
			},
		}}, nil
	}
}
