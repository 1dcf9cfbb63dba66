package domain

import "time"

// TicketItem is one purchasable unit within an order. SeatNumber is set
// exactly once, by the seat-assignment protocol, and never changes
// after that; once Status enters a terminal value it never changes
// either (spec.md §3).
type TicketItem struct {
	TicketID        string    `dynamodbav:"ticket_id"`
	OrderID         string    `dynamodbav:"order_id,omitempty"`
	ReservationID   string    `dynamodbav:"reservation_id,omitempty"`
	EventID         string    `dynamodbav:"event_id"`
	TicketType      string    `dynamodbav:"ticket_type"`
	SeatNumber      string    `dynamodbav:"seat_number,omitempty"`
	Price           Money     `dynamodbav:"price"`
	Status          Status    `dynamodbav:"status"`
	StatusChangedAt time.Time `dynamodbav:"status_changed_at,unixtime"`
	StatusChangedBy string    `dynamodbav:"status_changed_by,omitempty"`
	Version         int       `dynamodbav:"version"`
}

// WithStatus validates and applies a status transition, recording who
// triggered it (a user id, "worker", or "sweeper").
func (t TicketItem) WithStatus(to Status, by string, now time.Time) (TicketItem, error) {
	if err := ValidateTransition(t.Status, to); err != nil {
		return t, err
	}
	next := t
	next.Status = to
	next.StatusChangedAt = now
	next.StatusChangedBy = by
	next.Version++
	return next, nil
}

// WithSeat assigns a seat number exactly once. Calling it on a ticket
// that already has a seat number is a programmer error, guarded
// against by the seat-assignment protocol's conditional update rather
// than here (this method is the pure domain half of that protocol).
func (t TicketItem) WithSeat(seat string, to Status, by string, now time.Time) (TicketItem, error) {
	next, err := t.WithStatus(to, by, now)
	if err != nil {
		return t, err
	}
	next.SeatNumber = seat
	return next, nil
}
