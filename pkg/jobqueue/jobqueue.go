// Package jobqueue implements a durable, retrying job queue over Redis lists
// using the LPUSH/BRPOPLPUSH reliable-queue pattern (spec §5: "BullMQ-style
// retry/backoff handles transient failures; the provider client itself must
// not retry"), in the idiom of the teacher's own go-redis usage
// (internal/auth/ratelimit.go's INCR+EXPIRE client handling).
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SMSJob carries just enough to look up the rest from the database; the
// payload is deliberately thin so retries always see current delivery state.
type SMSJob struct {
	DeliveryID uuid.UUID `json:"deliveryId"`
	Attempt    int       `json:"attempt"`
}

const maxAttempts = 5

// Queue is a single named reliable queue: jobs move from the pending list to
// a per-consumer processing list on dequeue, and are removed from there only
// on Ack. A crashed consumer leaves jobs visible in the processing list for
// manual recovery; this package does not implement processing-list sweeping,
// since the spec does not call for cross-restart SMS recovery.
type Queue struct {
	redis      *redis.Client
	name       string
	processing string
	logger     *slog.Logger
}

func New(rdb *redis.Client, name string, logger *slog.Logger) *Queue {
	return &Queue{
		redis:      rdb,
		name:       "jobqueue:" + name,
		processing: "jobqueue:" + name + ":processing",
		logger:     logger,
	}
}

func (q *Queue) Enqueue(ctx context.Context, job SMSJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	if err := q.redis.LPush(ctx, q.name, raw).Err(); err != nil {
		return fmt.Errorf("enqueuing job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for a job, atomically moving it into the
// processing list so it is not lost if this consumer crashes before Ack.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*SMSJob, error) {
	raw, err := q.redis.BRPopLPush(ctx, q.name, q.processing, timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeuing job: %w", err)
	}
	var job SMSJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job: %w", err)
	}
	return &job, nil
}

// Ack removes the job from the processing list once its handler succeeds.
func (q *Queue) Ack(ctx context.Context, job SMSJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LRem(ctx, q.processing, 1, raw).Err()
}

// Retry removes the job from the processing list and, if attempts remain,
// re-enqueues it with a backoff delay; otherwise it is dropped and the
// caller is expected to have already recorded the failure on the delivery
// row (spec §4.6: "SMS send failures ... do not roll back the level bump").
func (q *Queue) Retry(ctx context.Context, job SMSJob) error {
	if err := q.Ack(ctx, job); err != nil {
		return err
	}
	if job.Attempt+1 >= maxAttempts {
		q.logger.Warn("sms job exhausted retries, dropping", "delivery_id", job.DeliveryID, "attempt", job.Attempt)
		return nil
	}

	next := job
	next.Attempt++
	backoff := time.Duration(1<<uint(next.Attempt)) * time.Second
	go func() {
		time.Sleep(backoff)
		if err := q.Enqueue(context.Background(), next); err != nil {
			q.logger.Error("re-enqueuing sms job", "delivery_id", next.DeliveryID, "error", err)
		}
	}()
	return nil
}

// RunWorker pulls jobs until ctx is cancelled, dispatching each to handler.
// A handler error triggers Retry; success triggers Ack. One failing job
// never blocks the loop from picking up the next (spec §4.6 failure
// semantics: a failed escalation must not abort processing of others).
func RunWorker(ctx context.Context, q *Queue, handler func(context.Context, SMSJob) error) {
	q.logger.Info("sms job worker started", "queue", q.name)
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("sms job worker stopped", "queue", q.name)
			return
		default:
		}

		job, err := q.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("dequeuing sms job", "error", err)
			continue
		}
		if job == nil {
			continue
		}

		if err := handler(ctx, *job); err != nil {
			q.logger.Warn("sms job handler failed, retrying", "delivery_id", job.DeliveryID, "error", err)
			if rerr := q.Retry(ctx, *job); rerr != nil {
				q.logger.Error("retrying sms job", "delivery_id", job.DeliveryID, "error", rerr)
			}
			continue
		}
		if err := q.Ack(ctx, *job); err != nil {
			q.logger.Error("acking sms job", "delivery_id", job.DeliveryID, "error", err)
		}
	}
}
