package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/ticketing-core/internal/store/memstore"
)

func TestWorker_ProcessesAndDeletesOnSuccess(t *testing.T) {
	q := memstore.NewQueue()
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, "orders", []byte("order-1"), nil))

	var processed int32
	w := New(q, func(ctx context.Context, orderID string) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, zerolog.Nop(), Config{QueueName: "orders", Parallelism: 2})

	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_ = w.Run(runCtx)

	assert.Equal(t, int32(1), atomic.LoadInt32(&processed))
	msgs, _ := q.Receive(ctx, "orders", 10, 0)
	assert.Empty(t, msgs, "successfully processed message should be deleted")
}

func TestWorker_LeavesMessageOnFailure(t *testing.T) {
	q := memstore.NewQueue()
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, "orders", []byte("order-1"), nil))

	w := New(q, func(ctx context.Context, orderID string) error {
		return assert.AnError
	}, zerolog.Nop(), Config{QueueName: "orders"})

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_ = w.Run(runCtx)

	q.Requeue("orders", "orders-1")
	msgs, _ := q.Receive(ctx, "orders", 10, 0)
	require.Len(t, msgs, 1, "failed message must remain for visibility-timeout redelivery")
}
