package orchestrator

import (
	"context"
	"time"

	"github.com/traffictacos/ticketing-core/internal/domain"
	"github.com/traffictacos/ticketing-core/internal/store"
)

func (o *Orchestrator) loadOrder(ctx context.Context, orderID string) (domain.TicketOrder, error) {
	item, err := o.kv.Get(ctx, orderTable, store.Item{"order_id": orderID})
	if err != nil {
		return domain.TicketOrder{}, domain.ErrStoreUnavailable(err)
	}
	if item == nil {
		return domain.TicketOrder{}, domain.ErrOrderNotFound(orderID)
	}
	return decodeOrder(item), nil
}

func (o *Orchestrator) putOrder(ctx context.Context, ord domain.TicketOrder) error {
	err := o.kv.Put(ctx, orderTable, store.Item{
		"order_id": ord.OrderID, "customer_id": ord.CustomerID, "order_number": ord.OrderNumber,
		"event_id": ord.EventID, "event_name": ord.EventName, "ticket_type": ord.TicketType,
		"quantity": ord.Quantity, "status": string(ord.Status),
		"total_amount": store.Item{"amount": ord.TotalAmount.Amount, "currency": ord.TotalAmount.Currency},
		"created_at": ord.CreatedAt, "updated_at": ord.UpdatedAt, "version": ord.Version,
	})
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	return nil
}

func (o *Orchestrator) putTicket(ctx context.Context, t domain.TicketItem) error {
	item := store.Item{
		"ticket_id": t.TicketID, "order_id": t.OrderID, "reservation_id": t.ReservationID,
		"event_id": t.EventID, "ticket_type": t.TicketType,
		"price": store.Item{"amount": t.Price.Amount, "currency": t.Price.Currency},
		"status": string(t.Status), "status_changed_at": t.StatusChangedAt,
		"status_changed_by": t.StatusChangedBy, "version": t.Version,
	}
	// An unassigned seat is left absent, not written as "", so the
	// seat-assignment protocol's FieldAbsent("seat_number") gate holds.
	if t.SeatNumber != "" {
		item["seat_number"] = t.SeatNumber
	}
	err := o.kv.Put(ctx, ticketItemTable, item)
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	return nil
}

func (o *Orchestrator) putReservation(ctx context.Context, r domain.TicketReservation) error {
	err := o.kv.Put(ctx, reservationTable, store.Item{
		"reservation_id": r.ReservationID, "order_id": r.OrderID, "event_id": r.EventID,
		"ticket_type": r.TicketType, "quantity": r.Quantity, "status": string(r.Status),
		"expires_at": r.ExpiresAt, "created_at": r.CreatedAt, "version": r.Version,
	})
	if err != nil {
		return domain.ErrStoreUnavailable(err)
	}
	return nil
}

func (o *Orchestrator) loadTicketsByOrder(ctx context.Context, orderID string) ([]domain.TicketItem, error) {
	page, err := o.kv.Query(ctx, ticketItemTable, "OrderIndex",
		store.KeyCondition{Field: "order_id", Prefix: orderID}, nil)
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err)
	}
	out := make([]domain.TicketItem, 0, len(page.Items))
	for _, it := range page.Items {
		out = append(out, decodeTicket(it))
	}
	return out, nil
}

func decodeOrder(item store.Item) domain.TicketOrder {
	amount, currency := decodeMoney(item["total_amount"])
	return domain.TicketOrder{
		OrderID:     toString(item["order_id"]),
		CustomerID:  toString(item["customer_id"]),
		OrderNumber: toString(item["order_number"]),
		EventID:     toString(item["event_id"]),
		EventName:   toString(item["event_name"]),
		TicketType:  toString(item["ticket_type"]),
		Quantity:    toInt(item["quantity"]),
		Status:      domain.Status(toString(item["status"])),
		TotalAmount: domain.Money{Amount: amount, Currency: currency},
		CreatedAt:   toTime(item["created_at"]),
		UpdatedAt:   toTime(item["updated_at"]),
		Version:     toInt(item["version"]),
	}
}

func decodeTicket(item store.Item) domain.TicketItem {
	amount, currency := decodeMoney(item["price"])
	return domain.TicketItem{
		TicketID:        toString(item["ticket_id"]),
		OrderID:         toString(item["order_id"]),
		ReservationID:   toString(item["reservation_id"]),
		EventID:         toString(item["event_id"]),
		TicketType:      toString(item["ticket_type"]),
		SeatNumber:      toString(item["seat_number"]),
		Price:           domain.Money{Amount: amount, Currency: currency},
		Status:          domain.Status(toString(item["status"])),
		StatusChangedAt: toTime(item["status_changed_at"]),
		StatusChangedBy: toString(item["status_changed_by"]),
		Version:         toInt(item["version"]),
	}
}

func decodeMoney(v any) (amount, currency string) {
	m, ok := v.(store.Item)
	if !ok {
		return "", ""
	}
	return toString(m["amount"]), toString(m["currency"])
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
