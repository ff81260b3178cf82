package workqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/safeart/postercheck/shared/rabbitmq"
)

// Rabbit is the production Queue backed by a RabbitMQ quorum queue. The
// unacked delivery is the lease; the broker's x-delivery-count header is
// the delivery counter; the dead-letter exchange declared by the shared
// client is the sink, fed by the broker once the delivery limit is spent.
type Rabbit struct {
	client      *rabbitmq.Client
	logger      *slog.Logger
	prefetch    int
	consumerTag string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbit wraps a connected RabbitMQ client as a work queue.
func NewRabbit(client *rabbitmq.Client, prefetch int, logger *slog.Logger) *Rabbit {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Rabbit{
		client:      client,
		logger:      logger,
		prefetch:    prefetch,
		consumerTag: "postercheck-worker-" + uuid.NewString()[:8],
	}
}

func (q *Rabbit) Enqueue(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode queue message: %w", err)
	}
	return q.client.PublishWithRetry(ctx, body, "application/json")
}

func (q *Rabbit) Receive(ctx context.Context, maxWait time.Duration) ([]Delivery, error) {
	deliveries, err := q.ensureConsumer()
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case d, ok := <-deliveries:
		if !ok {
			return nil, fmt.Errorf("rabbitmq delivery channel closed")
		}

		var msg Message
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			q.logger.Error("Failed to parse queue message, dead-lettering",
				slog.String("error", err.Error()),
				slog.String("body", string(d.Body)),
			)
			// Malformed messages can never succeed; route straight to the
			// sink instead of burning redelivery attempts.
			if nackErr := d.Nack(false, false); nackErr != nil {
				q.logger.Error("Failed to NACK malformed message",
					slog.String("error", nackErr.Error()),
				)
			}
			return nil, nil
		}

		count := deliveryAttempt(&d)
		msg.RetryCount = count - 1

		return []Delivery{{
			Message: msg,
			Count:   count,
			ack: func(context.Context) error {
				return d.Ack(false)
			},
			reject: func(context.Context) error {
				// Requeue unconditionally: the broker dead-letters once the
				// delivery limit is exceeded.
				return d.Nack(false, true)
			},
		}}, nil
	}
}

func (q *Rabbit) ensureConsumer() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries == nil {
		deliveries, err := q.client.Consume(q.consumerTag, q.prefetch)
		if err != nil {
			return nil, fmt.Errorf("start consumer: %w", err)
		}
		q.deliveries = deliveries
	}
	return q.deliveries, nil
}

// deliveryAttempt derives the 1-based attempt number from the quorum
// queue's x-delivery-count header, which counts redeliveries only.
func deliveryAttempt(d *amqp.Delivery) int {
	if d.Headers != nil {
		switch v := d.Headers["x-delivery-count"].(type) {
		case int64:
			return int(v) + 1
		case int32:
			return int(v) + 1
		case int:
			return v + 1
		}
	}
	if d.Redelivered {
		return 2
	}
	return 1
}
