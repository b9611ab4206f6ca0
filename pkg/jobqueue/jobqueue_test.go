package jobqueue

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, "sms-test", slog.Default())
}

func TestEnqueueDequeueAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job := SMSJob{DeliveryID: uuid.New()}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got == nil {
		t.Fatal("expected a job, got nil")
	}
	if got.DeliveryID != job.DeliveryID {
		t.Fatalf("DeliveryID = %v, want %v", got.DeliveryID, job.DeliveryID)
	}

	if err := q.Ack(ctx, *got); err != nil {
		t.Fatalf("Ack: %v", err)
	}
}

func TestDequeueReturnsNilOnTimeout(t *testing.T) {
	q := newTestQueue(t)
	got, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil job on empty queue timeout")
	}
}

func TestRunWorkerRetriesOnHandlerError(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	if err := q.Enqueue(ctx, SMSJob{DeliveryID: uuid.New()}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	attempts := 0
	done := make(chan struct{})
	go func() {
		RunWorker(ctx, q, func(ctx context.Context, job SMSJob) error {
			attempts++
			if attempts == 1 {
				return errors.New("transient failure")
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not see a retried job in time")
	}
	cancel()
}
