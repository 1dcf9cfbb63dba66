// Package seating implements the seat-assignment protocol (spec.md
// §4.2): candidate generation, occupied-set computation, and the
// atomic transactional commit that gives every sold or complimentary
// ticket a globally unique seat without a central lock.
package seating

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/observability"
	"github.com/traffictacos/ticketing-core/internal/store"
)

const (
	ticketItemTable      = "TicketItems"
	seatReservationTable = "SeatReservations"

	defaultMaxAttempts           = 3
	defaultMaxCandidateIterations = 10000
)

// Assigner runs the seat-assignment protocol over a KVStore.
type Assigner struct {
	kv                    store.KVStore
	log                   zerolog.Logger
	maxAttempts           int
	maxCandidateIterations int
	now                   func() time.Time
}

// Option configures an Assigner beyond its defaults.
type Option func(*Assigner)

// WithMaxAttempts overrides the transaction-cancellation retry bound.
func WithMaxAttempts(n int) Option {
	return func(a *Assigner) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithMaxCandidateIterations overrides the candidate-scan safety cap.
func WithMaxCandidateIterations(n int) Option {
	return func(a *Assigner) {
		if n > 0 {
			a.maxCandidateIterations = n
		}
	}
}

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(a *Assigner) { a.now = now }
}

// New builds an Assigner with spec.md §6 defaults, overridable via opts.
func New(kv store.KVStore, log zerolog.Logger, opts ...Option) *Assigner {
	a := &Assigner{
		kv:                    kv,
		log:                   log,
		maxAttempts:           defaultMaxAttempts,
		maxCandidateIterations: defaultMaxCandidateIterations,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// seatCandidate maps a sequential index to its "row-seat" string: row
// letter from 'A' onward, 10 seats per row, byte-exact per spec.md
// §4.2 ("(char)('A' + i/10)" and "(i%10)+1").
func seatCandidate(i int) string {
	row := byte('A' + i/10)
	seat := (i % 10) + 1
	return fmt.Sprintf("%c-%d", row, seat)
}

// occupiedSeats unions TicketItems with an assigned seat and
// SeatReservations under this (event, ticket type) namespace. The
// SeatReservation scan is authoritative under contention; the
// TicketItem scan is a convergence view (spec.md §4.2).
func (a *Assigner) occupiedSeats(ctx context.Context, eventID, ticketType string) (map[string]bool, error) {
	occupied := map[string]bool{}

	itemPage, err := a.kv.Scan(ctx, ticketItemTable, store.And{
		store.FieldEquals{Field: "event_id", Value: eventID},
		store.FieldEquals{Field: "ticket_type", Value: ticketType},
	})
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err)
	}
	for _, it := range itemPage.Items {
		if seat, ok := it["seat_number"].(string); ok && seat != "" {
			status, _ := it["status"].(string)
			if domain.Status(status) == domain.StatusSold || domain.Status(status) == domain.StatusComplimentary {
				occupied[seat] = true
			}
		}
	}

	seatPage, err := a.kv.Query(ctx, seatReservationTable, "",
		store.KeyCondition{Field: "seat_key", Prefix: domain.SeatPrefix(eventID, ticketType)}, nil)
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err)
	}
	for _, it := range seatPage.Items {
		if seat, ok := it["seat_number"].(string); ok && seat != "" {
			occupied[seat] = true
		}
	}

	return occupied, nil
}

// candidates scans sequentially from index 0, skipping occupied seats,
// until n unused candidates are collected or the iteration cap is hit.
func (a *Assigner) candidates(occupied map[string]bool, n int) ([]string, error) {
	out := make([]string, 0, n)
	for i := 0; i < a.maxCandidateIterations && len(out) < n; i++ {
		seat := seatCandidate(i)
		if !occupied[seat] {
			out = append(out, seat)
		}
	}
	if len(out) < n {
		return nil, errExhausted
	}
	return out, nil
}

var errExhausted = fmt.Errorf("seating: candidate scan exhausted")

// Assign runs the full protocol for the given tickets, transitioning
// each to the terminal status and giving each a unique seat number.
// tickets must be duplicate-ticket-free; callers validate that before
// calling (spec.md §4.2).
func (a *Assigner) Assign(ctx context.Context, eventID, ticketType string, tickets []domain.TicketItem, terminal domain.Status, by string) ([]domain.TicketItem, error) {
	var assigned []domain.TicketItem
	err := observability.TraceMethod(ctx, "seating.Assign", func(ctx context.Context) error {
		var err error
		assigned, err = a.assign(ctx, eventID, ticketType, tickets, terminal, by)
		return err
	}, attribute.String("event_id", eventID), attribute.String("ticket_type", ticketType), attribute.Int("ticket_count", len(tickets)))
	return assigned, err
}

func (a *Assigner) assign(ctx context.Context, eventID, ticketType string, tickets []domain.TicketItem, terminal domain.Status, by string) ([]domain.TicketItem, error) {
	if err := requireDistinctTickets(tickets); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		occupied, err := a.occupiedSeats(ctx, eventID, ticketType)
		if err != nil {
			return nil, err
		}

		seats, err := a.candidates(occupied, len(tickets))
		if err != nil {
			return nil, domain.ErrSeatExhaustion(eventID, ticketType)
		}

		now := a.now()
		assigned := make([]domain.TicketItem, len(tickets))
		items := make([]store.TransactItem, 0, len(tickets)*3)
		for i, ticket := range tickets {
			seat := seats[i]
			next, err := ticket.WithSeat(seat, terminal, by, now)
			if err != nil {
				return nil, err
			}
			assigned[i] = next

			seatKey := domain.SeatKey(eventID, ticketType, seat)
			items = append(items,
				store.TransactItem{
					Table: seatReservationTable,
					Item:  store.Item{"seat_key": seatKey},
					Cond:  store.NotExists{},
				},
				store.TransactItem{
					Table: seatReservationTable,
					Item: store.Item{
						"seat_key":    seatKey,
						"event_id":    eventID,
						"ticket_type": ticketType,
						"seat_number": seat,
						"ticket_id":   ticket.TicketID,
						"order_id":    ticket.OrderID,
						"reserved_at": now,
					},
				},
				store.TransactItem{
					Table: ticketItemTable,
					Key:   store.Item{"ticket_id": ticket.TicketID},
					Mut: store.Composite{Set: store.Set{
						"seat_number":        seat,
						"status":             string(terminal),
						"status_changed_at":  now,
						"status_changed_by":  by,
						"version":            next.Version,
					}},
					Cond: store.And{
						store.FieldEquals{Field: "ticket_id", Value: ticket.TicketID},
						store.FieldAbsent{Field: "seat_number"},
					},
				},
			)
		}

		err = a.kv.TransactWrite(ctx, items)
		if err == nil {
			return assigned, nil
		}
		lastErr = err
		a.log.Warn().Str("event_id", eventID).Str("ticket_type", ticketType).
			Int("attempt", attempt).Err(err).Msg("seat assignment transaction cancelled, retrying")
	}

	return nil, domain.ErrSeatAssignmentFailed(eventID, ticketType, a.maxAttempts, lastErr)
}

func requireDistinctTickets(tickets []domain.TicketItem) error {
	seen := make(map[string]bool, len(tickets))
	for _, t := range tickets {
		if seen[t.TicketID] {
			return domain.ErrDuplicateTicketID(t.TicketID)
		}
		seen[t.TicketID] = true
	}
	return nil
}
