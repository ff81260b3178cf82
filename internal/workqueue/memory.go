package workqueue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Queue with an explicit visibility window and
// delivery accounting. It implements the same contract as the RabbitMQ
// queue and backs the test suite, where lease expiry and the dead-letter
// bound need to be observable without a broker.
type Memory struct {
	mu       sync.Mutex
	ready    []*memEntry
	inflight map[int]*memEntry
	dead     []Message
	nextID   int

	visibility time.Duration
	maxReceive int

	notify chan struct{}
}

type memEntry struct {
	id         int
	msg        Message
	deliveries int
	leaseUntil time.Time
}

// NewMemory creates an in-memory queue with the given visibility window
// and delivery bound.
func NewMemory(visibility time.Duration, maxReceive int) *Memory {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}
	return &Memory{
		inflight:   make(map[int]*memEntry),
		visibility: visibility,
		maxReceive: maxReceive,
		notify:     make(chan struct{}, 1),
	}
}

func (q *Memory) Enqueue(_ context.Context, msg Message) error {
	q.mu.Lock()
	q.nextID++
	q.ready = append(q.ready, &memEntry{id: q.nextID, msg: msg})
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *Memory) Receive(ctx context.Context, maxWait time.Duration) ([]Delivery, error) {
	deadline := time.Now().Add(maxWait)
	for {
		if d, ok := q.tryReceive(); ok {
			return []Delivery{d}, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		// Wake early on enqueue, but re-check at least every 10ms so an
		// expiring lease is noticed promptly.
		if wait > 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *Memory) tryReceive() (Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reapLocked(time.Now())
	if len(q.ready) == 0 {
		return Delivery{}, false
	}

	e := q.ready[0]
	q.ready = q.ready[1:]
	e.deliveries++
	e.leaseUntil = time.Now().Add(q.visibility)
	q.inflight[e.id] = e

	msg := e.msg
	msg.RetryCount = e.deliveries - 1
	id := e.id
	return Delivery{
		Message: msg,
		Count:   e.deliveries,
		ack: func(context.Context) error {
			q.mu.Lock()
			delete(q.inflight, id)
			q.mu.Unlock()
			return nil
		},
		reject: func(context.Context) error {
			q.release(id)
			return nil
		},
	}, true
}

// release returns a leased message to the queue, or to the dead-letter
// sink when its delivery budget is spent.
func (q *Memory) release(id int) {
	q.mu.Lock()
	e, ok := q.inflight[id]
	if ok {
		delete(q.inflight, id)
		if e.deliveries >= q.maxReceive {
			q.dead = append(q.dead, e.msg)
		} else {
			q.ready = append(q.ready, e)
		}
	}
	q.mu.Unlock()
	q.wake()
}

// reapLocked returns expired leases to the ready list. A lease expiring
// acts as the implicit redelivery signal.
func (q *Memory) reapLocked(now time.Time) {
	for id, e := range q.inflight {
		if e.leaseUntil.After(now) {
			continue
		}
		delete(q.inflight, id)
		if e.deliveries >= q.maxReceive {
			q.dead = append(q.dead, e.msg)
		} else {
			q.ready = append(q.ready, e)
		}
	}
}

func (q *Memory) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// DeadLetters returns a copy of the dead-letter sink contents.
func (q *Memory) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.dead))
	copy(out, q.dead)
	return out
}

// Depth returns the number of immediately receivable messages.
func (q *Memory) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reapLocked(time.Now())
	return len(q.ready)
}

// Inflight returns the number of currently leased messages.
func (q *Memory) Inflight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}
