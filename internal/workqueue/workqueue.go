// Package workqueue is the at-least-once delivery channel carrying
// job-processing messages. A received message is leased: invisible to
// other receivers for a visibility window, redelivered when the lease
// expires without an acknowledgment, and moved to a dead-letter sink by
// the queue itself once its delivery budget is exhausted. Ordering is not
// guaranteed and duplicates are possible; consumers must be idempotent.
package workqueue

import (
	"context"
	"time"

	"github.com/safeart/postercheck/internal/job"
)

// Message is the unit transported by the queue. It carries only enough to
// re-locate the job record and the staged source bytes, never the verdict.
type Message struct {
	JobID       string         `json:"jobId"`
	StorageRef  job.StorageRef `json:"storageRef"`
	Fingerprint string         `json:"fingerprint"`
	RetryCount  int            `json:"retryCount,omitempty"`
}

// Delivery is one leased message. Count is the 1-based delivery attempt.
type Delivery struct {
	Message Message
	Count   int

	ack    func(ctx context.Context) error
	reject func(ctx context.Context) error
}

// Ack permanently removes the message from the queue.
func (d *Delivery) Ack(ctx context.Context) error {
	return d.ack(ctx)
}

// Reject releases the lease so the queue's redelivery policy takes over.
// Routing to the dead-letter sink is the queue's decision, never the
// caller's.
func (d *Delivery) Reject(ctx context.Context) error {
	return d.reject(ctx)
}

// Queue is the work queue contract shared by the coordinator (enqueue)
// and the worker pool (receive/ack).
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error

	// Receive waits up to maxWait for a message and returns at most one
	// leased delivery. A nil slice with a nil error means the wait timed
	// out with nothing available.
	Receive(ctx context.Context, maxWait time.Duration) ([]Delivery, error)
}
