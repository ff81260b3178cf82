package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safeart/postercheck/internal/job"
	"github.com/safeart/postercheck/internal/workqueue"
)

// spawnWorkerPool spawns N consumer goroutines based on the configured
// concurrency.
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the receive-process-acknowledge loop for one consumer.
// A processing failure leaves the message unacknowledged; the queue's
// lease expiry, redelivery counting, and dead-letter routing take it
// from there.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return
		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return
		default:
		}

		deliveries, err := w.queue.Receive(ctx, w.pollWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("Failed to receive from queue",
				slog.String("worker_name", workerName),
				slog.String("error", err.Error()),
			)
			time.Sleep(time.Second)
			continue
		}

		// Each message is processed and settled independently; one
		// failure never disturbs the rest of the batch.
		for i := range deliveries {
			w.handleDelivery(ctx, workerName, &deliveries[i])
		}
	}
}

func (w *Worker) handleDelivery(ctx context.Context, workerName string, d *workqueue.Delivery) {
	w.logger.Info("Worker received job message",
		slog.String("worker_name", workerName),
		slog.String("job_id", d.Message.JobID),
		slog.Int("delivery_count", d.Count),
	)

	err := w.processMessage(ctx, d.Message, d.Count)
	if err == nil {
		if ackErr := d.Ack(ctx); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", d.Message.JobID),
				slog.String("error", ackErr.Error()),
			)
			return
		}
		w.logger.Info("Job message acknowledged",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
		)
		return
	}

	switch {
	case errors.Is(err, job.ErrMissingJob):
		// A message without a job record means content was staged and
		// enqueued but the record vanished. That is a consistency bug,
		// not a transient fault.
		w.logger.Error("ALERT: queue message references missing job",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
			slog.Int("delivery_count", d.Count),
		)
	default:
		w.logger.Error("Job processing failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
			slog.Int("delivery_count", d.Count),
			slog.String("error", err.Error()),
		)
	}

	if rejectErr := d.Reject(ctx); rejectErr != nil {
		w.logger.Error("Failed to release message for redelivery",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
			slog.String("error", rejectErr.Error()),
		)
	}
}
