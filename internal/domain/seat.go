package domain

import (
	"fmt"
	"time"
)

// SeatReservation is the durable uniqueness lock row for one seat
// within one (event, ticket type) namespace. It is created only by the
// seat-assignment protocol's conditional-create and never updated
// after that (spec.md §3, §4.2).
type SeatReservation struct {
	EventID    string    `dynamodbav:"event_id"`
	TicketType string    `dynamodbav:"ticket_type"`
	SeatNumber string    `dynamodbav:"seat_number"`
	TicketID   string    `dynamodbav:"ticket_id"`
	OrderID    string    `dynamodbav:"order_id"`
	ReservedAt time.Time `dynamodbav:"reserved_at,unixtime"`
}

// SeatKey builds the `{event_id}#{ticket_type}#{seat_number}` key that
// is the SeatReservations table's primary key and uniqueness gate,
// byte-exact per spec.md §6.
func SeatKey(eventID, ticketType, seatNumber string) string {
	return fmt.Sprintf("%s#%s#%s", eventID, ticketType, seatNumber)
}

// SeatPrefix is the key prefix identifying every seat reservation for
// one (event, ticket type) namespace, used by the occupied-set scan.
func SeatPrefix(eventID, ticketType string) string {
	return fmt.Sprintf("%s#%s#", eventID, ticketType)
}

// Key returns this row's own SeatKey.
func (s SeatReservation) Key() string {
	return SeatKey(s.EventID, s.TicketType, s.SeatNumber)
}
