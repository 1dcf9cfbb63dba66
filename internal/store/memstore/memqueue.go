package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/traffictacos/ticketing-core/internal/store"
)

type pending struct {
	msg     store.Message
	inFlight bool
}

// Queue is an in-memory, at-least-once fake of the store.Queue
// contract: Receive hands out a message and marks it in-flight;
// Delete is the only way to retire it. There is no visibility-timeout
// expiry here (tests drive redelivery explicitly by calling Receive
// again after simulating a crash), which is sufficient to exercise the
// worker's idempotency rather than the queue's own redelivery timer.
type Queue struct {
	mu      sync.Mutex
	queues  map[string][]*pending
	seq     int64
}

func NewQueue() *Queue {
	return &Queue{queues: make(map[string][]*pending)}
}

func (q *Queue) Send(_ context.Context, queue string, body []byte, attrs map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := atomic.AddInt64(&q.seq, 1)
	q.queues[queue] = append(q.queues[queue], &pending{
		msg: store.Message{
			Body:          append([]byte(nil), body...),
			Attributes:    attrs,
			ReceiptHandle: fmt.Sprintf("%s-%d", queue, id),
		},
	})
	return nil
}

func (q *Queue) Receive(_ context.Context, queue string, max int, _ int) ([]store.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []store.Message
	for _, p := range q.queues[queue] {
		if p.inFlight {
			continue
		}
		p.inFlight = true
		out = append(out, p.msg)
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

func (q *Queue) Delete(_ context.Context, queue string, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.queues[queue]
	for i, p := range items {
		if p.msg.ReceiptHandle == receipt {
			q.queues[queue] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Requeue clears the in-flight flag without deleting, simulating a
// visibility timeout expiry for tests that want redelivery.
func (q *Queue) Requeue(queue string, receipt string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.queues[queue] {
		if p.msg.ReceiptHandle == receipt {
			p.inFlight = false
		}
	}
}
