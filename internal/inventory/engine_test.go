package inventory

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/store"
	"github.com/traffictacos/ticketing-core/internal/store/memstore"
)

func newEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	kv := memstore.New()
	return New(kv, zerolog.Nop(), 3), kv
}

func seed(t *testing.T, kv *memstore.Store, inv domain.TicketInventory) {
	t.Helper()
	require.NoError(t, kv.Put(context.Background(), inventoryTable, store.Item{
		"event_id": inv.EventID, "ticket_type": inv.Type,
		"total": inv.Total, "available": inv.Available, "reserved": inv.Reserved, "version": inv.Version,
	}))
}

func TestEngine_ReserveThenConfirm(t *testing.T) {
	e, kv := newEngine(t)
	seed(t, kv, domain.TicketInventory{EventID: "e1", Type: "VIP", Total: 10, Available: 10, Reserved: 0})
	ctx := context.Background()

	got, err := e.Reserve(ctx, "e1", "VIP", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Available)
	assert.Equal(t, 3, got.Reserved)
	assert.Equal(t, 1, got.Version)

	got, err = e.ConfirmReservation(ctx, "e1", "VIP", 2)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Available)
	assert.Equal(t, 1, got.Reserved)
	assert.Equal(t, 2, got.Sold())
}

func TestEngine_ReserveInsufficientInventory(t *testing.T) {
	e, kv := newEngine(t)
	seed(t, kv, domain.TicketInventory{EventID: "e1", Type: "GA", Total: 5, Available: 2, Reserved: 3})

	_, err := e.Reserve(context.Background(), "e1", "GA", 3)
	require.Error(t, err)
	assert.Equal(t, domain.KindDomainRule, domain.KindOf(err))
	assert.True(t, domain.Is(err, "InsufficientInventory"))
}

func TestEngine_CreateInventory_RejectsDuplicate(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	inv := domain.TicketInventory{EventID: "e2", Type: "GA", Total: 100, Available: 100}

	require.NoError(t, e.CreateInventory(ctx, inv))
	err := e.CreateInventory(ctx, inv)
	require.Error(t, err)
	assert.True(t, domain.Is(err, "DuplicateInventory"))
}

func TestEngine_GetMissing_ReturnsNotFound(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Get(context.Background(), "nope", "GA")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
