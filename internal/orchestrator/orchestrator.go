// Package orchestrator implements the order lifecycle (spec.md §4.3):
// create, processAsync, confirm, markAsSold, and markAsComplimentary,
// plus the idempotency ledger and transition-audit-trail supplements
// (SPEC_FULL.md §12).
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/inventory"
	"github.com/traffictacos/ticketing-core/internal/observability"
	"github.com/traffictacos/ticketing-core/internal/seating"
	"github.com/traffictacos/ticketing-core/internal/store"
)

const (
	orderTable       = "TicketOrders"
	ticketItemTable  = "TicketItems"
	reservationTable = "TicketReservations"
	customerTable    = "CustomerInfo"
	idempotencyTable = "IdempotencyLedger"
	auditTable       = "TicketStateTransitionAudit"

	defaultProcessingQueue = "order-processing"
)

// Orchestrator coordinates order lifecycle transitions across the
// TicketOrder/TicketItem/TicketReservation rows, the Inventory Engine,
// and the seat-assignment protocol.
type Orchestrator struct {
	kv        store.KVStore
	queue     store.Queue
	queueName string
	inv       *inventory.Engine
	seats     *seating.Assigner
	idem      *idempotencyLedger
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
	timeout   time.Duration
}

// Option configures an Orchestrator beyond its defaults.
type Option func(*Orchestrator)

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides ID generation (tests only).
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// WithReservationTimeout overrides the default 10-minute reservation
// lifetime (spec.md §6, `reservation.timeout_minutes`).
func WithReservationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithQueueName overrides the default processing queue name.
func WithQueueName(name string) Option {
	return func(o *Orchestrator) { o.queueName = name }
}

// New builds an Orchestrator.
func New(kv store.KVStore, queue store.Queue, inv *inventory.Engine, seats *seating.Assigner, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		kv:        kv,
		queue:     queue,
		queueName: defaultProcessingQueue,
		inv:       inv,
		seats:     seats,
		idem:      &idempotencyLedger{kv: kv},
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		timeout:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateOrderInput carries the fields spec.md §4.3 `create` accepts.
type CreateOrderInput struct {
	CustomerID string
	EventID    string
	EventName  string
	TicketType string
	Quantity   int
}

// CreateOrder implements `create`: reserves inventory, creates the
// order/tickets/reservation rows, and enqueues the order for async
// processing.
func (o *Orchestrator) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.TicketOrder, error) {
	var order domain.TicketOrder
	err := observability.TraceMethod(ctx, "orchestrator.CreateOrder", func(ctx context.Context) error {
		var err error
		order, err = o.createOrder(ctx, in)
		return err
	}, attribute.String("event_id", in.EventID), attribute.String("ticket_type", in.TicketType))
	return order, err
}

func (o *Orchestrator) createOrder(ctx context.Context, in CreateOrderInput) (domain.TicketOrder, error) {
	inv, err := o.inv.Get(ctx, in.EventID, in.TicketType)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if inv.Available < in.Quantity {
		return domain.TicketOrder{}, domain.ErrInsufficientInventory(in.Quantity, inv.Available)
	}
	if _, err := o.inv.Reserve(ctx, in.EventID, in.TicketType, in.Quantity); err != nil {
		return domain.TicketOrder{}, err
	}

	now := o.now()
	orderID := o.newID()
	orderNumber := orderID
	if len(orderNumber) > 8 {
		orderNumber = orderNumber[:8]
	}
	order := domain.TicketOrder{
		OrderID:     orderID,
		CustomerID:  in.CustomerID,
		OrderNumber: orderNumber,
		EventID:     in.EventID,
		EventName:   in.EventName,
		TicketType:  in.TicketType,
		Quantity:    in.Quantity,
		Status:      domain.StatusAvailable,
		TotalAmount: inv.Price.MultiplyQty(in.Quantity),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     0,
	}
	if err := o.putOrder(ctx, order); err != nil {
		return domain.TicketOrder{}, err
	}

	for i := 0; i < in.Quantity; i++ {
		ticket := domain.TicketItem{
			TicketID:        o.newID(),
			OrderID:         orderID,
			EventID:         in.EventID,
			TicketType:      in.TicketType,
			Price:           inv.Price,
			Status:          domain.StatusAvailable,
			StatusChangedAt: now,
			StatusChangedBy: "system",
			Version:         0,
		}
		if err := o.putTicket(ctx, ticket); err != nil {
			return domain.TicketOrder{}, err
		}
		o.writeAudit(ctx, ticket.TicketID, "", string(domain.StatusAvailable), "system", true, "")
	}

	reservation := domain.TicketReservation{
		ReservationID: o.newID(),
		OrderID:       orderID,
		EventID:       in.EventID,
		TicketType:    in.TicketType,
		Quantity:      in.Quantity,
		Status:        domain.ReservationActive,
		ExpiresAt:     now.Add(o.timeout),
		CreatedAt:     now,
		Version:       0,
	}
	if err := o.putReservation(ctx, reservation); err != nil {
		return domain.TicketOrder{}, err
	}

	if err := o.queue.Send(ctx, o.queueName, []byte(orderID), nil); err != nil {
		return domain.TicketOrder{}, domain.ErrQueueUnavailable(err)
	}

	return order, nil
}

// ProcessAsync implements `processAsync`: the worker's handler for a
// dequeued order id. Re-delivery of an order past AVAILABLE is a
// no-op success, making the handler idempotent (spec.md §4.3).
func (o *Orchestrator) ProcessAsync(ctx context.Context, orderID string) error {
	return observability.TraceMethod(ctx, "orchestrator.ProcessAsync", func(ctx context.Context) error {
		return o.processAsync(ctx, orderID)
	}, attribute.String("order_id", orderID))
}

func (o *Orchestrator) processAsync(ctx context.Context, orderID string) error {
	dedupKey := "processAsync:" + orderID
	_, seen, err := o.idem.check(ctx, dedupKey)
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	if seen {
		o.log.Debug().Str("order_id", orderID).Msg("processAsync no-op: dedup key already recorded")
		return nil
	}

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusAvailable {
		o.log.Debug().Str("order_id", orderID).Str("status", string(order.Status)).
			Msg("processAsync no-op: order already past AVAILABLE")
		return nil
	}

	now := o.now()
	next, err := order.WithStatus(domain.StatusReserved, now)
	if err != nil {
		return err
	}

	tickets, err := o.loadTicketsByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		nt, err := t.WithStatus(domain.StatusReserved, "worker", now)
		if err != nil {
			return err
		}
		if err := o.putTicket(ctx, nt); err != nil {
			return err
		}
		o.writeAudit(ctx, t.TicketID, string(t.Status), string(domain.StatusReserved), "worker", true, "")
	}

	if err := o.putOrder(ctx, next); err != nil {
		return err
	}
	return o.idem.claim(ctx, dedupKey, "processAsync", orderID, o.now())
}

// ConfirmInput carries the fields `confirm` accepts alongside the
// order id: the customer details recorded at confirmation time.
type ConfirmInput struct {
	OrderID string
	Info    domain.CustomerInfo
}

// Confirm implements `confirm`.
func (o *Orchestrator) Confirm(ctx context.Context, in ConfirmInput) (domain.TicketOrder, error) {
	var order domain.TicketOrder
	err := observability.TraceMethod(ctx, "orchestrator.Confirm", func(ctx context.Context) error {
		var err error
		order, err = o.confirm(ctx, in)
		return err
	}, attribute.String("order_id", in.OrderID))
	return order, err
}

func (o *Orchestrator) confirm(ctx context.Context, in ConfirmInput) (domain.TicketOrder, error) {
	order, err := o.loadOrder(ctx, in.OrderID)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if order.Status != domain.StatusReserved {
		return domain.TicketOrder{}, domain.ErrInvalidStateTransition(string(order.Status), string(domain.StatusPendingConfirmation), string(domain.StatusReserved))
	}

	now := o.now()
	info := in.Info
	info.OrderID = in.OrderID
	info.CreatedAt = now
	info.UpdatedAt = now
	if err := o.kv.Put(ctx, customerTable, store.Item{
		"order_id": info.OrderID, "customer_id": info.CustomerID, "name": info.Name,
		"email": info.Email, "phone": info.Phone, "address": info.Address,
		"city": info.City, "country": info.Country, "payment_method": info.PaymentMethod,
		"created_at": info.CreatedAt, "updated_at": info.UpdatedAt,
	}); err != nil {
		return domain.TicketOrder{}, domain.ErrStoreUnavailable(err)
	}

	tickets, err := o.loadTicketsByOrder(ctx, in.OrderID)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	for _, t := range tickets {
		nt, err := t.WithStatus(domain.StatusPendingConfirmation, "system", now)
		if err != nil {
			return domain.TicketOrder{}, err
		}
		if err := o.putTicket(ctx, nt); err != nil {
			return domain.TicketOrder{}, err
		}
		o.writeAudit(ctx, t.TicketID, string(t.Status), string(domain.StatusPendingConfirmation), "system", true, "")
	}

	next, err := order.WithStatus(domain.StatusPendingConfirmation, now)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if err := o.putOrder(ctx, next); err != nil {
		return domain.TicketOrder{}, err
	}
	return next, nil
}

// MarkAsSold implements `markAsSold`.
func (o *Orchestrator) MarkAsSold(ctx context.Context, orderID string) (domain.TicketOrder, error) {
	var order domain.TicketOrder
	err := observability.TraceMethod(ctx, "orchestrator.MarkAsSold", func(ctx context.Context) error {
		var err error
		order, err = o.markAsSold(ctx, orderID)
		return err
	}, attribute.String("order_id", orderID))
	return order, err
}

func (o *Orchestrator) markAsSold(ctx context.Context, orderID string) (domain.TicketOrder, error) {
	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if order.Status == domain.StatusSold {
		return order, nil
	}
	dedupKey := "markAsSold:" + orderID
	_, seen, err := o.idem.check(ctx, dedupKey)
	if err != nil {
		return domain.TicketOrder{}, domain.ErrStoreUnavailable(err)
	}
	if seen {
		return o.loadOrder(ctx, orderID)
	}
	if order.Status != domain.StatusPendingConfirmation {
		return domain.TicketOrder{}, domain.ErrInvalidStateTransition(string(order.Status), string(domain.StatusSold), string(domain.StatusPendingConfirmation))
	}

	tickets, err := o.loadTicketsByOrder(ctx, orderID)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if err := o.assignSeatsIfNeeded(ctx, order, tickets, domain.StatusSold); err != nil {
		return domain.TicketOrder{}, err
	}

	next, err := order.WithStatus(domain.StatusSold, o.now())
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if err := o.putOrder(ctx, next); err != nil {
		return domain.TicketOrder{}, err
	}

	if _, err := o.inv.ConfirmReservation(ctx, order.EventID, order.TicketType, order.Quantity); err != nil {
		return domain.TicketOrder{}, err
	}

	if err := o.idem.claim(ctx, dedupKey, "markAsSold", orderID, o.now()); err != nil {
		return domain.TicketOrder{}, domain.ErrStoreUnavailable(err)
	}
	return next, nil
}

// MarkAsComplimentary implements `markAsComplimentary`: allowed from
// AVAILABLE, RESERVED, or PENDING_CONFIRMATION. From every source status
// the order's quantity is already held in `reserved` (CreateOrder
// reserved it), so the inventory adjustment is a single
// ConfirmReservation.
func (o *Orchestrator) MarkAsComplimentary(ctx context.Context, orderID, reason string) (domain.TicketOrder, error) {
	var order domain.TicketOrder
	err := observability.TraceMethod(ctx, "orchestrator.MarkAsComplimentary", func(ctx context.Context) error {
		var err error
		order, err = o.markAsComplimentary(ctx, orderID, reason)
		return err
	}, attribute.String("order_id", orderID), attribute.String("reason", reason))
	return order, err
}

func (o *Orchestrator) markAsComplimentary(ctx context.Context, orderID, reason string) (domain.TicketOrder, error) {
	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if order.Status == domain.StatusComplimentary {
		return order, nil
	}
	dedupKey := "markAsComplimentary:" + orderID
	_, seen, err := o.idem.check(ctx, dedupKey)
	if err != nil {
		return domain.TicketOrder{}, domain.ErrStoreUnavailable(err)
	}
	if seen {
		return o.loadOrder(ctx, orderID)
	}
	source := order.Status

	tickets, err := o.loadTicketsByOrder(ctx, orderID)
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if err := o.assignSeatsIfNeeded(ctx, order, tickets, domain.StatusComplimentary); err != nil {
		return domain.TicketOrder{}, err
	}

	next, err := order.WithStatus(domain.StatusComplimentary, o.now())
	if err != nil {
		return domain.TicketOrder{}, err
	}
	if err := o.putOrder(ctx, next); err != nil {
		return domain.TicketOrder{}, err
	}

	switch source {
	case domain.StatusReserved, domain.StatusPendingConfirmation:
		if _, err := o.inv.ConfirmReservation(ctx, order.EventID, order.TicketType, order.Quantity); err != nil {
			return domain.TicketOrder{}, err
		}
	case domain.StatusAvailable:
		// CreateOrder already moved these tickets into `reserved`;
		// reserving again would hold a second, orphaned set.
		if _, err := o.inv.ConfirmReservation(ctx, order.EventID, order.TicketType, order.Quantity); err != nil {
			return domain.TicketOrder{}, err
		}
	}

	if err := o.idem.claim(ctx, dedupKey, "markAsComplimentary", orderID, o.now()); err != nil {
		return domain.TicketOrder{}, domain.ErrStoreUnavailable(err)
	}

	o.log.Info().Str("order_id", orderID).Str("reason", reason).Msg("order marked complimentary")
	return next, nil
}

// assignSeatsIfNeeded runs the seat-assignment protocol unless a prior
// attempt already committed it for these tickets. The protocol's
// transaction is single-shot per ticket (it requires seat_number to be
// absent), so a retry after a downstream failure (e.g. the putOrder
// that follows) must detect the already-seated tickets rather than
// calling Assign a second time, which would fail its own precondition.
func (o *Orchestrator) assignSeatsIfNeeded(ctx context.Context, order domain.TicketOrder, tickets []domain.TicketItem, terminal domain.Status) error {
	if ticketsAlreadyAssigned(tickets, terminal) {
		return nil
	}
	_, err := o.seats.Assign(ctx, order.EventID, order.TicketType, tickets, terminal, "system")
	return err
}

func ticketsAlreadyAssigned(tickets []domain.TicketItem, terminal domain.Status) bool {
	if len(tickets) == 0 {
		return false
	}
	for _, t := range tickets {
		if t.Status != terminal || t.SeatNumber == "" {
			return false
		}
	}
	return true
}

func (o *Orchestrator) writeAudit(ctx context.Context, ticketID, from, to, by string, ok bool, errMsg string) {
	rec := domain.TicketStateTransitionAudit{
		AuditID:     o.newID(),
		TicketID:    ticketID,
		FromStatus:  from,
		ToStatus:    to,
		At:          o.now(),
		PerformedBy: by,
		Successful:  ok,
		Error:       errMsg,
	}
	if err := o.kv.Put(ctx, auditTable, store.Item{
		"audit_id": rec.AuditID, "ticket_id": rec.TicketID, "from_status": rec.FromStatus,
		"to_status": rec.ToStatus, "at": rec.At, "performed_by": rec.PerformedBy,
		"successful": rec.Successful, "error": rec.Error,
	}); err != nil {
		o.log.Warn().Err(err).Str("ticket_id", ticketID).Msg("failed to write transition audit record")
	}
}
