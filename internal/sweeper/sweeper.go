// Package sweeper implements the Reservation Sweeper (spec.md §4.4): a
// periodic pass that expires reservations past their deadline and
// defensively compensates the Event/TicketInventory counters.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/store"
)

const (
	eventTable       = "Events"
	reservationTable = "TicketReservations"
)

// Sweeper runs one expiry pass at a time; callers drive its cadence
// (cmd/sweeper ticks it on an interval, spec.md §6
// `reservation.check_interval_ms`, default 60s).
type Sweeper struct {
	kv  store.KVStore
	inv *inventory.Engine
	log zerolog.Logger
	now func() time.Time
}

// Option configures a Sweeper beyond its defaults.
type Option func(*Sweeper)

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New builds a Sweeper.
func New(kv store.KVStore, inv *inventory.Engine, log zerolog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{kv: kv, inv: inv, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs a single pass and returns the count of reservations
// transitioned to EXPIRED.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	page, err := s.kv.Scan(ctx, reservationTable, store.FieldEquals{Field: "status", Value: string(domain.ReservationActive)})
	if err != nil {
		return 0, domain.ErrStoreUnavailable(err)
	}

	expired := 0
	for _, item := range page.Items {
		r := decodeReservation(item)
		if !r.Expired(now) {
			continue
		}
		if s.sweepOne(ctx, r) {
			expired++
		}
	}
	return expired, nil
}

// sweepOne compensates the counters and persists the EXPIRED status,
// reporting whether that status write succeeded.
func (s *Sweeper) sweepOne(ctx context.Context, r domain.TicketReservation) bool {
	s.compensateEvent(ctx, r)
	s.compensateInventory(ctx, r)

	next := r.Expire()
	err := s.kv.Put(ctx, reservationTable, store.Item{
		"reservation_id": next.ReservationID, "order_id": next.OrderID, "event_id": next.EventID,
		"ticket_type": next.TicketType, "quantity": next.Quantity, "status": string(next.Status),
		"expires_at": next.ExpiresAt, "created_at": next.CreatedAt, "version": next.Version,
	})
	if err != nil {
		s.log.Error().Err(err).Str("reservation_id", r.ReservationID).
			Msg("failed to persist reservation expiry; will be re-scanned next sweep")
		return false
	}
	return true
}

func (s *Sweeper) compensateEvent(ctx context.Context, r domain.TicketReservation) {
	item, err := s.kv.Get(ctx, eventTable, store.Item{"event_id": r.EventID})
	if err != nil || item == nil {
		s.log.Warn().Str("event_id", r.EventID).Msg("sweeper: event not found, skipping counter compensation")
		return
	}
	ev := decodeEvent(item)
	if ev.Reserved < r.Quantity {
		s.log.Info().Str("event_id", r.EventID).Str("reservation_id", r.ReservationID).
			Msg("sweeper: event.reserved already below quantity, likely concurrent sale; proceeding without adjustment")
		return
	}
	next, err := ev.WithReleaseReservation(r.Quantity)
	if err != nil {
		return
	}
	err = s.kv.UpdateIf(ctx, eventTable, store.Item{"event_id": ev.EventID},
		store.Composite{Set: store.Set{"available": next.Available, "reserved": next.Reserved, "version": next.Version}},
		store.FieldEquals{Field: "version", Value: ev.Version})
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", r.EventID).Msg("sweeper: event counter compensation lost the race, proceeding")
	}
}

func (s *Sweeper) compensateInventory(ctx context.Context, r domain.TicketReservation) {
	inv, err := s.inv.Get(ctx, r.EventID, r.TicketType)
	if err != nil {
		s.log.Warn().Str("event_id", r.EventID).Str("ticket_type", r.TicketType).
			Msg("sweeper: inventory not found, skipping counter compensation")
		return
	}
	if inv.Reserved < r.Quantity {
		s.log.Info().Str("event_id", r.EventID).Str("ticket_type", r.TicketType).
			Msg("sweeper: inventory.reserved already below quantity, likely concurrent sale; proceeding without adjustment")
		return
	}
	if _, err := s.inv.ReleaseReservation(ctx, r.EventID, r.TicketType, r.Quantity); err != nil {
		s.log.Warn().Err(err).Str("event_id", r.EventID).Str("ticket_type", r.TicketType).
			Msg("sweeper: inventory counter compensation failed, proceeding")
	}
}

func decodeReservation(item store.Item) domain.TicketReservation {
	return domain.TicketReservation{
		ReservationID: toString(item["reservation_id"]),
		OrderID:       toString(item["order_id"]),
		EventID:       toString(item["event_id"]),
		TicketType:    toString(item["ticket_type"]),
		Quantity:      toInt(item["quantity"]),
		Status:        domain.ReservationStatus(toString(item["status"])),
		ExpiresAt:     toTime(item["expires_at"]),
		CreatedAt:     toTime(item["created_at"]),
		Version:       toInt(item["version"]),
	}
}

func decodeEvent(item store.Item) domain.Event {
	return domain.Event{
		EventID:       toString(item["event_id"]),
		Name:          toString(item["name"]),
		Venue:         toString(item["venue"]),
		EventDate:     toTime(item["event_date"]),
		TotalCapacity: toInt(item["total_capacity"]),
		Available:     toInt(item["available"]),
		Reserved:      toInt(item["reserved"]),
		Sold:          toInt(item["sold"]),
		Status:        toString(item["status"]),
		Version:       toInt(item["version"]),
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
