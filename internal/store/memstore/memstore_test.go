package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/ticketing-core/internal/store"
)

func TestPutIf_NotExistsGatesUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.PutIf(ctx, "seats", store.Item{"seat_key": "E#VIP#A-1", "ticket_id": "t1"}, store.NotExists{})
	require.NoError(t, err)

	err = s.PutIf(ctx, "seats", store.Item{"seat_key": "E#VIP#A-1", "ticket_id": "t2"}, store.NotExists{})
	require.ErrorIs(t, err, store.ErrPreconditionFailed)
}

func TestUpdateIf_VersionPrecondition(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "inv", store.Item{"event_id": "e1", "available": 10, "version": 0}))

	err := s.UpdateIf(ctx, "inv", store.Item{"event_id": "e1"},
		store.Composite{Incr: store.Incr{"available": -1, "version": 1}},
		store.FieldEquals{Field: "version", Value: 0})
	require.NoError(t, err)

	item, err := s.Get(ctx, "inv", store.Item{"event_id": "e1"})
	require.NoError(t, err)
	assert.Equal(t, 9, item["available"])
	assert.Equal(t, 1, item["version"])

	err = s.UpdateIf(ctx, "inv", store.Item{"event_id": "e1"},
		store.Composite{Incr: store.Incr{"available": -1}},
		store.FieldEquals{Field: "version", Value: 0})
	require.ErrorIs(t, err, store.ErrPreconditionFailed)
}

func TestPutIf_ThenGetByKeySubset_FindsRowWrittenWithExtraAttributes(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.PutIf(ctx, "TicketInventory", store.Item{
		"event_id": "e1", "ticket_type": "GA", "total": 100, "available": 100, "version": 0,
	}, store.NotExists{}))

	item, err := s.Get(ctx, "TicketInventory", store.Item{"event_id": "e1", "ticket_type": "GA"})
	require.NoError(t, err)
	require.NotNil(t, item, "a row written with attributes beyond its key must still be found by key alone")
	assert.Equal(t, 100, item["available"])
}

func TestTransactWrite_AllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "seats", store.Item{"seat_key": "E#VIP#A-1"}))

	err := s.TransactWrite(ctx, []store.TransactItem{
		{Table: "seats", Item: store.Item{"seat_key": "E#VIP#A-2"}, Cond: store.NotExists{}},
		{Table: "seats", Item: store.Item{"seat_key": "E#VIP#A-1"}, Cond: store.NotExists{}},
	})
	require.Error(t, err)

	_, err2 := s.Get(ctx, "seats", store.Item{"seat_key": "E#VIP#A-2"})
	require.NoError(t, err2)
	item, _ := s.Get(ctx, "seats", store.Item{"seat_key": "E#VIP#A-2"})
	assert.Nil(t, item, "first item must not be committed when the second fails its precondition")
}

func TestQueue_SendReceiveDelete(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "orders", []byte(`{"order_id":"o1"}`), nil))

	msgs, err := q.Receive(ctx, "orders", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	more, err := q.Receive(ctx, "orders", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, more, "in-flight message should not be redelivered until requeued or deleted")

	require.NoError(t, q.Delete(ctx, "orders", msgs[0].ReceiptHandle))
}
