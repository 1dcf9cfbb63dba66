package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/store"
	"github.com/traffictacos/ticketing-core/internal/store/memstore"
)

func TestSweep_ExpiresPastDeadlineAndCompensatesCounters(t *testing.T) {
	kv := memstore.New()
	ctx := context.Background()
	invEngine := inventory.New(kv, zerolog.Nop(), 3)

	require.NoError(t, invEngine.CreateInventory(ctx, domain.TicketInventory{
		EventID: "e1", Type: "GA", Total: 10, Available: 7, Reserved: 3,
	}))
	require.NoError(t, kv.Put(ctx, eventTable, store.Item{
		"event_id": "e1", "total_capacity": 10, "available": 7, "reserved": 3, "sold": 0, "version": 0,
	}))
	require.NoError(t, kv.Put(ctx, reservationTable, store.Item{
		"reservation_id": "r1", "order_id": "o1", "event_id": "e1", "ticket_type": "GA",
		"quantity": 3, "status": string(domain.ReservationActive),
		"expires_at": time.Unix(1000, 0), "created_at": time.Unix(0, 0), "version": 0,
	}))

	s := New(kv, invEngine, zerolog.Nop(), WithClock(func() time.Time { return time.Unix(2000, 0) }))
	count, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	inv, err := invEngine.Get(ctx, "e1", "GA")
	require.NoError(t, err)
	assert.Equal(t, 10, inv.Available)
	assert.Equal(t, 0, inv.Reserved)

	item, err := kv.Get(ctx, reservationTable, store.Item{"reservation_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationExpired), item["status"])
}

func TestSweep_SkipsNotYetExpired(t *testing.T) {
	kv := memstore.New()
	ctx := context.Background()
	invEngine := inventory.New(kv, zerolog.Nop(), 3)
	require.NoError(t, kv.Put(ctx, reservationTable, store.Item{
		"reservation_id": "r1", "event_id": "e1", "ticket_type": "GA", "quantity": 1,
		"status": string(domain.ReservationActive), "expires_at": time.Unix(5000, 0), "version": 0,
	}))

	s := New(kv, invEngine, zerolog.Nop(), WithClock(func() time.Time { return time.Unix(1000, 0) }))
	count, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweep_ToleratesCounterAlreadyBelowQuantity(t *testing.T) {
	kv := memstore.New()
	ctx := context.Background()
	invEngine := inventory.New(kv, zerolog.Nop(), 3)
	require.NoError(t, invEngine.CreateInventory(ctx, domain.TicketInventory{EventID: "e1", Type: "GA", Total: 10, Available: 10, Reserved: 0}))
	require.NoError(t, kv.Put(ctx, reservationTable, store.Item{
		"reservation_id": "r1", "event_id": "e1", "ticket_type": "GA", "quantity": 3,
		"status": string(domain.ReservationActive), "expires_at": time.Unix(100, 0), "version": 0,
	}))

	s := New(kv, invEngine, zerolog.Nop(), WithClock(func() time.Time { return time.Unix(200, 0) }))
	count, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "reservation still transitions to EXPIRED even when the counter race is lost")

	item, err := kv.Get(ctx, reservationTable, store.Item{"reservation_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationExpired), item["status"])
}
