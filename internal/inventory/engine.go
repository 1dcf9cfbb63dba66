// Package inventory implements the Inventory Engine (spec.md §4.1): a
// thin use-case layer over store.KVStore that applies the pure
// TicketInventory mutation methods and commits them with an
// optimistic-lock retry loop, the same pattern the teacher's
// InventoryService used for its conditional DynamoDB updates.
package inventory

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/observability"
	"github.com/traffictacos/ticketing-core/internal/store"
)

const (
	inventoryTable = "TicketInventory"

	// defaultMaxAttempts bounds the optimistic-lock retry loop per
	// spec.md §4.1: reserve/release/confirm retry on version conflict
	// up to this many times before surfacing OptimisticLockConflict.
	defaultMaxAttempts = 3
)

// Engine applies conservation-law mutations to TicketInventory rows
// under optimistic concurrency control. It does not read or write
// Event rows.
type Engine struct {
	kv          store.KVStore
	log         zerolog.Logger
	maxAttempts uint
}

// New builds an Engine. log is expected to already carry service-wide
// fields (spec.md §10.2); maxAttempts <= 0 falls back to the default.
func New(kv store.KVStore, log zerolog.Logger, maxAttempts int) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Engine{kv: kv, log: log, maxAttempts: uint(maxAttempts)}
}

// mutate is the shared retry scaffold: load the current row, apply fn,
// write it back gated on the version it was read at. A precondition
// failure (another writer won the race) is retried with randomized
// backoff; other errors stop immediately.
func (e *Engine) mutate(ctx context.Context, eventID, ticketType string, fn func(domain.TicketInventory) (domain.TicketInventory, error)) (domain.TicketInventory, error) {
	var result domain.TicketInventory
	err := observability.TraceMethod(ctx, "inventory.mutate", func(ctx context.Context) error {
		var err error
		result, err = e.mutateUntraced(ctx, eventID, ticketType, fn)
		return err
	}, attribute.String("event_id", eventID), attribute.String("ticket_type", ticketType))
	return result, err
}

func (e *Engine) mutateUntraced(ctx context.Context, eventID, ticketType string, fn func(domain.TicketInventory) (domain.TicketInventory, error)) (domain.TicketInventory, error) {
	op := func() (domain.TicketInventory, error) {
		current, err := e.load(ctx, eventID, ticketType)
		if err != nil {
			return domain.TicketInventory{}, backoff.Permanent(err)
		}

		next, err := fn(current)
		if err != nil {
			return domain.TicketInventory{}, backoff.Permanent(err)
		}

		err = e.kv.UpdateIf(ctx, inventoryTable,
			store.Item{"event_id": eventID, "ticket_type": ticketType},
			store.Composite{
				Set:  store.Set{"available": next.Available, "reserved": next.Reserved, "version": next.Version},
				Incr: store.Incr{},
			},
			store.FieldEquals{Field: "version", Value: current.Version},
		)
		if err == store.ErrPreconditionFailed {
			e.log.Debug().Str("event_id", eventID).Str("ticket_type", ticketType).
				Int("version", current.Version).Msg("inventory optimistic lock conflict, retrying")
			return domain.TicketInventory{}, errRetry
		}
		if err != nil {
			return domain.TicketInventory{}, backoff.Permanent(domain.ErrStoreUnavailable(err))
		}
		return next, nil
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithMaxTries(e.maxAttempts),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		if err == errRetry {
			return domain.TicketInventory{}, domain.ErrOptimisticLockConflict(inventoryTable, eventID+"#"+ticketType)
		}
		return domain.TicketInventory{}, err
	}
	return result, nil
}

// errRetry is a sentinel so mutate's op can signal "retry" without
// allocating a new domain error each attempt; it is never returned to
// callers directly.
var errRetry = &retryable{}

type retryable struct{}

func (*retryable) Error() string { return "retry" }

func (e *Engine) load(ctx context.Context, eventID, ticketType string) (domain.TicketInventory, error) {
	item, err := e.kv.Get(ctx, inventoryTable, store.Item{"event_id": eventID, "ticket_type": ticketType})
	if err != nil {
		return domain.TicketInventory{}, domain.ErrStoreUnavailable(err)
	}
	if item == nil {
		return domain.TicketInventory{}, domain.ErrInventoryNotFound(eventID, ticketType)
	}
	return decodeInventory(item), nil
}

func decodeInventory(item store.Item) domain.TicketInventory {
	amount, currency := "", ""
	if m, ok := item["price"].(store.Item); ok {
		amount, currency = toString(m["amount"]), toString(m["currency"])
	}
	return domain.TicketInventory{
		EventID:   toString(item["event_id"]),
		EventName: toString(item["event_name"]),
		Type:      toString(item["ticket_type"]),
		Total:     toInt(item["total"]),
		Available: toInt(item["available"]),
		Reserved:  toInt(item["reserved"]),
		Price:     domain.Money{Amount: amount, Currency: currency},
		Version:   toInt(item["version"]),
	}
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

func toString(v any) string {
	s, _ := v.(string)
	return s
}

// Reserve implements `reserve`: moves n seats from available to
// reserved for (eventID, ticketType).
func (e *Engine) Reserve(ctx context.Context, eventID, ticketType string, n int) (domain.TicketInventory, error) {
	return e.mutate(ctx, eventID, ticketType, func(t domain.TicketInventory) (domain.TicketInventory, error) {
		return t.Reserve(n)
	})
}

// ReleaseReservation implements `release_reservation`.
func (e *Engine) ReleaseReservation(ctx context.Context, eventID, ticketType string, n int) (domain.TicketInventory, error) {
	return e.mutate(ctx, eventID, ticketType, func(t domain.TicketInventory) (domain.TicketInventory, error) {
		return t.ReleaseReservation(n)
	})
}

// ConfirmReservation implements `confirm_reservation`.
func (e *Engine) ConfirmReservation(ctx context.Context, eventID, ticketType string, n int) (domain.TicketInventory, error) {
	return e.mutate(ctx, eventID, ticketType, func(t domain.TicketInventory) (domain.TicketInventory, error) {
		return t.ConfirmReservation(n)
	})
}

// CreateInventory seeds a new TicketInventory row, rejecting a
// duplicate (event_id, ticket_type) pair (spec.md §4.1 edge case).
func (e *Engine) CreateInventory(ctx context.Context, inv domain.TicketInventory) error {
	return observability.TraceMethod(ctx, "inventory.CreateInventory", func(ctx context.Context) error {
		return e.createInventory(ctx, inv)
	}, attribute.String("event_id", inv.EventID), attribute.String("ticket_type", inv.Type))
}

func (e *Engine) createInventory(ctx context.Context, inv domain.TicketInventory) error {
	err := e.kv.PutIf(ctx, inventoryTable, store.Item{
		"event_id":    inv.EventID,
		"event_name":  inv.EventName,
		"ticket_type": inv.Type,
		"total":       inv.Total,
		"available":   inv.Available,
		"reserved":    inv.Reserved,
		"price":       store.Item{"amount": inv.Price.Amount, "currency": inv.Price.Currency},
		"version":     0,
	}, store.NotExists{})
	if err == store.ErrPreconditionFailed {
		return domain.ErrDuplicateInventory(inv.EventID, inv.Type)
	}
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	return nil
}

// Get returns the current inventory row for (eventID, ticketType).
func (e *Engine) Get(ctx context.Context, eventID, ticketType string) (domain.TicketInventory, error) {
	return e.load(ctx, eventID, ticketType)
}
