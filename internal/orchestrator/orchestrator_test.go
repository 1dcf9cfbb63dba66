package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/seating"
	"github.com/traffictacos/ticketing-core/internal/store"
	"github.com/traffictacos/ticketing-core/internal/store/memstore"
)

func newHarness(t *testing.T) (*Orchestrator, *memstore.Store, *memstore.Queue) {
	t.Helper()
	kv := memstore.New()
	q := memstore.NewQueue()
	invEngine := inventory.New(kv, zerolog.Nop(), 3)
	seater := seating.New(kv, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, invEngine.CreateInventory(ctx, domain.TicketInventory{
		EventID: "e1", EventName: "Concert", Type: "GA", Total: 100, Available: 100,
		Price: domain.Money{Amount: "50.00", Currency: "USD"},
	}))

	var seq int
	orch := New(kv, q, invEngine, seater, zerolog.Nop(),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		WithIDGenerator(func() string { seq++; return "id-" + itoa(seq) }),
	)
	return orch, kv, q
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestCreateOrder_ReservesInventoryAndEnqueues(t *testing.T) {
	orch, kv, q := newHarness(t)
	ctx := context.Background()

	order, err := orch.CreateOrder(ctx, CreateOrderInput{
		CustomerID: "cust1", EventID: "e1", EventName: "Concert", TicketType: "GA", Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, order.Status)
	assert.Equal(t, "100.00", order.TotalAmount.Amount)

	inv, err := orch.inv.Get(ctx, "e1", "GA")
	require.NoError(t, err)
	assert.Equal(t, 98, inv.Available)
	assert.Equal(t, 2, inv.Reserved)

	msgs, err := q.Receive(ctx, "order-processing", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, order.OrderID, string(msgs[0].Body))

	tickets, err := orch.loadTicketsByOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	_ = kv
}

func TestFullLifecycle_CreateToSold(t *testing.T) {
	orch, _, _ := newHarness(t)
	ctx := context.Background()

	order, err := orch.CreateOrder(ctx, CreateOrderInput{
		CustomerID: "cust1", EventID: "e1", EventName: "Concert", TicketType: "GA", Quantity: 2,
	})
	require.NoError(t, err)

	require.NoError(t, orch.ProcessAsync(ctx, order.OrderID))
	order, err = orch.loadOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserved, order.Status)

	require.NoError(t, orch.ProcessAsync(ctx, order.OrderID))

	confirmed, err := orch.Confirm(ctx, ConfirmInput{OrderID: order.OrderID, Info: domain.CustomerInfo{CustomerID: "cust1", Name: "Ada", Email: "ada@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingConfirmation, confirmed.Status)

	sold, err := orch.MarkAsSold(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, sold.Status)

	tickets, err := orch.loadTicketsByOrder(ctx, order.OrderID)
	require.NoError(t, err)
	seats := map[string]bool{}
	for _, tk := range tickets {
		assert.Equal(t, domain.StatusSold, tk.Status)
		assert.NotEmpty(t, tk.SeatNumber)
		assert.False(t, seats[tk.SeatNumber])
		seats[tk.SeatNumber] = true
	}

	inv, err := orch.inv.Get(ctx, "e1", "GA")
	require.NoError(t, err)
	assert.Equal(t, 98, inv.Available)
	assert.Equal(t, 0, inv.Reserved)
	assert.Equal(t, 2, inv.Sold())
}

func TestMarkAsComplimentary_FromAvailable_ConsumesInventoryDirectly(t *testing.T) {
	orch, _, _ := newHarness(t)
	ctx := context.Background()

	order, err := orch.CreateOrder(ctx, CreateOrderInput{
		CustomerID: "cust1", EventID: "e1", EventName: "Concert", TicketType: "GA", Quantity: 1,
	})
	require.NoError(t, err)

	comp, err := orch.MarkAsComplimentary(ctx, order.OrderID, "press pass")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplimentary, comp.Status)

	inv, err := orch.inv.Get(ctx, "e1", "GA")
	require.NoError(t, err)
	assert.Equal(t, 99, inv.Available)
	assert.Equal(t, 0, inv.Reserved)
	assert.Equal(t, 1, inv.Sold())
}

func TestConfirm_RejectsWrongSourceStatus(t *testing.T) {
	orch, _, _ := newHarness(t)
	ctx := context.Background()
	order, err := orch.CreateOrder(ctx, CreateOrderInput{CustomerID: "c1", EventID: "e1", EventName: "Concert", TicketType: "GA", Quantity: 1})
	require.NoError(t, err)

	_, err = orch.Confirm(ctx, ConfirmInput{OrderID: order.OrderID})
	require.Error(t, err)
	assert.True(t, domain.Is(err, "InvalidStateTransition"))
}

func TestMarkAsSold_RetryDoesNotReassignSeats(t *testing.T) {
	orch, _, _ := newHarness(t)
	ctx := context.Background()
	order, err := orch.CreateOrder(ctx, CreateOrderInput{CustomerID: "c1", EventID: "e1", EventName: "Concert", TicketType: "GA", Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessAsync(ctx, order.OrderID))
	_, err = orch.Confirm(ctx, ConfirmInput{OrderID: order.OrderID, Info: domain.CustomerInfo{CustomerID: "c1"}})
	require.NoError(t, err)

	first, err := orch.MarkAsSold(ctx, order.OrderID)
	require.NoError(t, err)

	firstTickets, err := orch.loadTicketsByOrder(ctx, order.OrderID)
	require.NoError(t, err)
	firstSeats := map[string]string{}
	for _, tk := range firstTickets {
		firstSeats[tk.TicketID] = tk.SeatNumber
	}

	second, err := orch.MarkAsSold(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)

	secondTickets, err := orch.loadTicketsByOrder(ctx, order.OrderID)
	require.NoError(t, err)
	for _, tk := range secondTickets {
		assert.Equal(t, firstSeats[tk.TicketID], tk.SeatNumber)
	}
}

// flakyPutKV wraps a KVStore and fails the first N Put calls that
// write a given status value to a given table, then behaves normally.
// It simulates a transient write failure (e.g. a DynamoDB blip) on a
// specific lifecycle transition, downstream of where an idempotency
// key would otherwise already be claimed.
type flakyPutKV struct {
	*memstore.Store
	table    string
	status   string
	failures int
}

func (f *flakyPutKV) Put(ctx context.Context, table string, item store.Item) error {
	if table == f.table && item["status"] == f.status && f.failures > 0 {
		f.failures--
		return errors.New("simulated transient store failure")
	}
	return f.Store.Put(ctx, table, item)
}

func TestMarkAsSold_RetriesAfterDownstreamFailure(t *testing.T) {
	ctx := context.Background()
	base := memstore.New()
	q := memstore.NewQueue()
	kv := &flakyPutKV{Store: base, table: orderTable, status: string(domain.StatusSold), failures: 1}

	invEngine := inventory.New(kv, zerolog.Nop(), 3)
	seater := seating.New(kv, zerolog.Nop())
	require.NoError(t, invEngine.CreateInventory(ctx, domain.TicketInventory{
		EventID: "e1", EventName: "Concert", Type: "GA", Total: 10, Available: 10,
		Price: domain.Money{Amount: "50.00", Currency: "USD"},
	}))

	var seq int
	orch := New(kv, q, invEngine, seater, zerolog.Nop(),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		WithIDGenerator(func() string { seq++; return "id-" + itoa(seq) }),
	)

	order, err := orch.CreateOrder(ctx, CreateOrderInput{CustomerID: "c1", EventID: "e1", EventName: "Concert", TicketType: "GA", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessAsync(ctx, order.OrderID))
	_, err = orch.Confirm(ctx, ConfirmInput{OrderID: order.OrderID, Info: domain.CustomerInfo{CustomerID: "c1"}})
	require.NoError(t, err)

	// The seat-assignment transaction commits, but the subsequent
	// putOrder fails once, before the idempotency key is ever claimed.
	_, err = orch.MarkAsSold(ctx, order.OrderID)
	require.Error(t, err, "first attempt must surface the simulated write failure")

	// A retry (e.g. redelivered RPC) must still be able to make
	// progress: it must not find the key already claimed and return a
	// stale PENDING_CONFIRMATION order as if the transition succeeded.
	sold, err := orch.MarkAsSold(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, sold.Status)
}

func TestProcessAsync_RedeliveryIsNoOp(t *testing.T) {
	orch, _, _ := newHarness(t)
	ctx := context.Background()
	order, err := orch.CreateOrder(ctx, CreateOrderInput{CustomerID: "c1", EventID: "e1", EventName: "Concert", TicketType: "GA", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, orch.ProcessAsync(ctx, order.OrderID))
	require.NoError(t, orch.ProcessAsync(ctx, order.OrderID))

	got, err := orch.loadOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserved, got.Status)
}
