package workqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeart/postercheck/internal/job"
)

func testMessage(jobID string) Message {
	return Message{
		JobID:       jobID,
		StorageRef:  job.StorageRef{Bucket: "posters", Key: "posters/netflix/aa/aaaa.jpg"},
		Fingerprint: "aaaa",
	}
}

func receiveOne(t *testing.T, q *Memory, maxWait time.Duration) Delivery {
	t.Helper()
	ds, err := q.Receive(context.Background(), maxWait)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	return ds[0]
}

func TestMemory_EnqueueReceiveAck(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Second, 3)

	require.NoError(t, q.Enqueue(ctx, testMessage("j1")))

	d := receiveOne(t, q, 100*time.Millisecond)
	assert.Equal(t, "j1", d.Message.JobID)
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, 0, d.Message.RetryCount)

	// Leased message is invisible to other receivers.
	ds, err := q.Receive(ctx, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ds)

	require.NoError(t, d.Ack(ctx))
	assert.Equal(t, 0, q.Depth())
	assert.Equal(t, 0, q.Inflight())

	// Acknowledged messages never come back.
	ds, err = q.Receive(ctx, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestMemory_RejectRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute, 3)
	require.NoError(t, q.Enqueue(ctx, testMessage("j1")))

	d := receiveOne(t, q, 100*time.Millisecond)
	require.NoError(t, d.Reject(ctx))

	d = receiveOne(t, q, 100*time.Millisecond)
	assert.Equal(t, 2, d.Count)
	assert.Equal(t, 1, d.Message.RetryCount)
}

func TestMemory_LeaseExpiryRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(40*time.Millisecond, 3)
	require.NoError(t, q.Enqueue(ctx, testMessage("j1")))

	first := receiveOne(t, q, 100*time.Millisecond)
	assert.Equal(t, 1, first.Count)

	// Never acknowledged: after the visibility window the message becomes
	// receivable again with an incremented delivery count.
	second := receiveOne(t, q, 500*time.Millisecond)
	assert.Equal(t, "j1", second.Message.JobID)
	assert.Equal(t, 2, second.Count)
}

func TestMemory_DeadLetterAfterExactlyMaxReceive(t *testing.T) {
	ctx := context.Background()
	const maxReceive = 3
	q := NewMemory(time.Minute, maxReceive)
	require.NoError(t, q.Enqueue(ctx, testMessage("j1")))

	for attempt := 1; attempt <= maxReceive; attempt++ {
		d := receiveOne(t, q, 100*time.Millisecond)
		assert.Equal(t, attempt, d.Count)
		assert.Empty(t, q.DeadLetters(), "must not dead-letter before attempt %d fails", attempt)
		require.NoError(t, d.Reject(ctx))
	}

	// Not delivered a fourth time; it is in the sink instead.
	ds, err := q.Receive(ctx, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ds)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "j1", dead[0].JobID)
}

func TestMemory_IndependentMessages(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute, 3)
	require.NoError(t, q.Enqueue(ctx, testMessage("j1")))
	require.NoError(t, q.Enqueue(ctx, testMessage("j2")))

	d1 := receiveOne(t, q, 100*time.Millisecond)
	d2 := receiveOne(t, q, 100*time.Millisecond)
	assert.NotEqual(t, d1.Message.JobID, d2.Message.JobID)

	// Rejecting one message does not disturb the other's lease.
	require.NoError(t, d1.Reject(ctx))
	assert.Equal(t, 1, q.Inflight())
	require.NoError(t, d2.Ack(ctx))

	redelivered := receiveOne(t, q, 100*time.Millisecond)
	assert.Equal(t, d1.Message.JobID, redelivered.Message.JobID)
}

func TestMemory_ReceiveTimeout(t *testing.T) {
	q := NewMemory(time.Minute, 3)

	start := time.Now()
	ds, err := q.Receive(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMemory_ReceiveHonorsContext(t *testing.T) {
	q := NewMemory(time.Minute, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
