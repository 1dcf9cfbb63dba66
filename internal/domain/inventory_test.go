package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInventory() TicketInventory {
	return TicketInventory{
		EventID:   "evt-1",
		Type:      "VIP",
		Total:     100,
		Available: 100,
		Reserved:  0,
		Price:     Money{Amount: "150.00", Currency: "USD"},
		Version:   0,
	}
}

func TestTicketInventory_ReserveThenConfirm(t *testing.T) {
	inv := newInventory()

	inv, err := inv.Reserve(1)
	require.NoError(t, err)
	assert.Equal(t, 99, inv.Available)
	assert.Equal(t, 1, inv.Reserved)
	assert.Equal(t, 1, inv.Version)
	assert.True(t, inv.Conserved())

	inv, err = inv.ConfirmReservation(1)
	require.NoError(t, err)
	assert.Equal(t, 99, inv.Available)
	assert.Equal(t, 0, inv.Reserved)
	assert.Equal(t, 1, inv.Sold())
	assert.Equal(t, 2, inv.Version)
	assert.True(t, inv.Conserved())
}

func TestTicketInventory_ReserveInsufficient(t *testing.T) {
	inv := newInventory()
	inv.Available = 2

	_, err := inv.Reserve(3)
	require.Error(t, err)
	assert.True(t, Is(err, "InsufficientInventory"))
}

func TestTicketInventory_ReleaseReservation(t *testing.T) {
	inv := newInventory()
	inv.Available = 5
	inv.Reserved = 5
	inv.Total = 10

	inv, err := inv.ReleaseReservation(5)
	require.NoError(t, err)
	assert.Equal(t, 10, inv.Available)
	assert.Equal(t, 0, inv.Reserved)
	assert.True(t, inv.Conserved())
}

func TestTicketInventory_ReleaseMoreThanReservedFails(t *testing.T) {
	inv := newInventory()
	inv.Reserved = 1

	_, err := inv.ReleaseReservation(2)
	require.Error(t, err)
	assert.True(t, Is(err, "InsufficientInventory"))
}

func TestEvent_ConservationAcrossLifecycle(t *testing.T) {
	ev := Event{EventID: "evt-1", TotalCapacity: 1000, Available: 1000}
	require.True(t, ev.Conserved())

	ev, err := ev.WithReserve(1)
	require.NoError(t, err)
	require.True(t, ev.Conserved())

	ev, err = ev.WithConfirmReservation(1)
	require.NoError(t, err)
	require.True(t, ev.Conserved())
	assert.Equal(t, 1, ev.Sold)
}
