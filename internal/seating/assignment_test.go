package seating

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/store"
	"github.com/traffictacos/ticketing-core/internal/store/memstore"
)

// flakyTransactKV wraps a KVStore and returns a simulated transaction
// cancellation for the first N TransactWrite calls, mimicking a
// competing writer winning the race for the same candidate seat.
type flakyTransactKV struct {
	*memstore.Store
	cancellations int
}

func (f *flakyTransactKV) TransactWrite(ctx context.Context, items []store.TransactItem) error {
	if f.cancellations > 0 {
		f.cancellations--
		return &store.TransactCancelled{Reasons: []error{store.ErrPreconditionFailed}}
	}
	return f.Store.TransactWrite(ctx, items)
}

func ticket(id string) domain.TicketItem {
	return domain.TicketItem{
		TicketID: id, EventID: "e1", TicketType: "GA",
		Status: domain.StatusPendingConfirmation,
	}
}

func TestSeatCandidate_Encoding(t *testing.T) {
	assert.Equal(t, "A-1", seatCandidate(0))
	assert.Equal(t, "A-10", seatCandidate(9))
	assert.Equal(t, "B-1", seatCandidate(10))
}

func TestAssign_GivesDistinctSeats(t *testing.T) {
	kv := memstore.New()
	ctx := context.Background()
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, kv.Put(ctx, ticketItemTable, store.Item{
			"ticket_id": id, "event_id": "e1", "ticket_type": "GA",
			"status": string(domain.StatusPendingConfirmation),
		}))
	}

	a := New(kv, zerolog.Nop(), WithClock(func() time.Time { return time.Unix(1000, 0) }))
	tickets := []domain.TicketItem{ticket("t1"), ticket("t2"), ticket("t3")}

	assigned, err := a.Assign(ctx, "e1", "GA", tickets, domain.StatusSold, "worker")
	require.NoError(t, err)
	require.Len(t, assigned, 3)

	seats := map[string]bool{}
	for _, tk := range assigned {
		assert.NotEmpty(t, tk.SeatNumber)
		assert.False(t, seats[tk.SeatNumber], "seat %s assigned twice", tk.SeatNumber)
		seats[tk.SeatNumber] = true
		assert.Equal(t, domain.StatusSold, tk.Status)
	}
}

func TestAssign_SkipsOccupiedSeats(t *testing.T) {
	kv := memstore.New()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, ticketItemTable, store.Item{"ticket_id": "t1", "event_id": "e1", "ticket_type": "GA", "status": string(domain.StatusPendingConfirmation)}))
	require.NoError(t, kv.Put(ctx, seatReservationTable, store.Item{"seat_key": domain.SeatKey("e1", "GA", "A-1"), "seat_number": "A-1"}))

	a := New(kv, zerolog.Nop())
	assigned, err := a.Assign(ctx, "e1", "GA", []domain.TicketItem{ticket("t1")}, domain.StatusSold, "worker")
	require.NoError(t, err)
	assert.Equal(t, "A-2", assigned[0].SeatNumber)
}

func TestAssign_RejectsDuplicateTicketIDs(t *testing.T) {
	kv := memstore.New()
	a := New(kv, zerolog.Nop())
	_, err := a.Assign(context.Background(), "e1", "GA", []domain.TicketItem{ticket("t1"), ticket("t1")}, domain.StatusSold, "worker")
	require.Error(t, err)
}

func TestAssign_RetriesOnTransactionCancellation(t *testing.T) {
	base := memstore.New()
	ctx := context.Background()
	require.NoError(t, base.Put(ctx, ticketItemTable, store.Item{"ticket_id": "t1", "event_id": "e1", "ticket_type": "GA", "status": string(domain.StatusPendingConfirmation)}))

	kv := &flakyTransactKV{Store: base, cancellations: 2}
	a := New(kv, zerolog.Nop(), WithMaxAttempts(3))

	assigned, err := a.Assign(ctx, "e1", "GA", []domain.TicketItem{ticket("t1")}, domain.StatusSold, "worker")
	require.NoError(t, err, "a transaction cancelled by contention must be retried, not surfaced immediately")
	assert.Equal(t, "A-1", assigned[0].SeatNumber)
}

func TestAssign_ExhaustedRetries_WrapsLastCancellationReason(t *testing.T) {
	base := memstore.New()
	ctx := context.Background()
	require.NoError(t, base.Put(ctx, ticketItemTable, store.Item{"ticket_id": "t1", "event_id": "e1", "ticket_type": "GA", "status": string(domain.StatusPendingConfirmation)}))

	kv := &flakyTransactKV{Store: base, cancellations: 5}
	a := New(kv, zerolog.Nop(), WithMaxAttempts(3))

	_, err := a.Assign(ctx, "e1", "GA", []domain.TicketItem{ticket("t1")}, domain.StatusSold, "worker")
	require.Error(t, err)
	assert.True(t, domain.Is(err, "SeatAssignmentFailed"))

	var cancelled *store.TransactCancelled
	require.True(t, errors.As(err, &cancelled), "the underlying transaction-cancellation reason must remain in the error chain")
}

func TestAssign_ExhaustionWhenAllSeatsOccupied(t *testing.T) {
	kv := memstore.New()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, ticketItemTable, store.Item{"ticket_id": "t1", "event_id": "e1", "ticket_type": "GA", "status": string(domain.StatusPendingConfirmation)}))

	a := New(kv, zerolog.Nop(), WithMaxCandidateIterations(5))
	for i := 0; i < 5; i++ {
		require.NoError(t, kv.Put(ctx, seatReservationTable, store.Item{
			"seat_key": domain.SeatKey("e1", "GA", seatCandidate(i)), "seat_number": seatCandidate(i),
		}))
	}

	_, err := a.Assign(ctx, "e1", "GA", []domain.TicketItem{ticket("t1")}, domain.StatusSold, "worker")
	require.Error(t, err)
	assert.True(t, domain.Is(err, "SeatExhaustion"))
}
