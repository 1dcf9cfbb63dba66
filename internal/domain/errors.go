package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain-level failure into one of the four error
// families the ticket lifecycle engine distinguishes. Callers branch on
// Kind, never on Error().
type Kind int

const (
	// KindNotFound covers OrderNotFound, EventNotFound, InventoryNotFound.
	KindNotFound Kind = iota
	// KindDomainRule covers InsufficientInventory, InvalidStateTransition,
	// DuplicateInventory, SeatExhaustion.
	KindDomainRule
	// KindConcurrency covers OptimisticLockConflict and
	// SeatAssignmentFailed (after retries are exhausted).
	KindConcurrency
	// KindInfrastructure covers StoreUnavailable, QueueUnavailable,
	// Timeout, Cancelled.
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindDomainRule:
		return "DomainRule"
	case KindConcurrency:
		return "Concurrency"
	case KindInfrastructure:
		return "Infrastructure"
	default:
		return "Unknown"
	}
}

// Error is the stable error shape every use case returns. Code is a
// machine-stable string (e.g. "InsufficientInventory"); Message is
// human-readable and never contains a stack trace.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, code, msg string, wrapped error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: wrapped}
}

// NotFound-family constructors.

func ErrOrderNotFound(orderID string) *Error {
	return newErr(KindNotFound, "OrderNotFound", fmt.Sprintf("order %s not found", orderID), nil)
}

func ErrEventNotFound(eventID string) *Error {
	return newErr(KindNotFound, "EventNotFound", fmt.Sprintf("event %s not found", eventID), nil)
}

func ErrInventoryNotFound(eventID, ticketType string) *Error {
	return newErr(KindNotFound, "InventoryNotFound", fmt.Sprintf("inventory not found for event %s ticket type %s", eventID, ticketType), nil)
}

// DomainRule-family constructors.

func ErrInsufficientInventory(requested, available int) *Error {
	return newErr(KindDomainRule, "InsufficientInventory",
		fmt.Sprintf("requested %d but only %d available", requested, available), nil)
}

func ErrInvalidStateTransition(from, to, required string) *Error {
	return newErr(KindDomainRule, "InvalidStateTransition",
		fmt.Sprintf("cannot transition from %s to %s: requires %s", from, to, required), nil)
}

func ErrDuplicateInventory(eventID, ticketType string) *Error {
	return newErr(KindDomainRule, "DuplicateInventory",
		fmt.Sprintf("inventory already exists for event %s ticket type %s", eventID, ticketType), nil)
}

func ErrSeatExhaustion(eventID, ticketType string) *Error {
	return newErr(KindDomainRule, "SeatExhaustion",
		fmt.Sprintf("no seats left to assign for event %s ticket type %s", eventID, ticketType), nil)
}

func ErrDuplicateTicketID(ticketID string) *Error {
	return newErr(KindDomainRule, "DuplicateTicketID",
		fmt.Sprintf("ticket %s appears more than once in the same batch", ticketID), nil)
}

// Concurrency-family constructors.

func ErrOptimisticLockConflict(table, key string) *Error {
	return newErr(KindConcurrency, "OptimisticLockConflict",
		fmt.Sprintf("version mismatch writing %s/%s", table, key), nil)
}

func ErrSeatAssignmentFailed(eventID, ticketType string, attempts int, cause error) *Error {
	return newErr(KindConcurrency, "SeatAssignmentFailed",
		fmt.Sprintf("seat assignment for event %s ticket type %s failed after %d attempts", eventID, ticketType, attempts), cause)
}

// Infrastructure-family constructors.

func ErrStoreUnavailable(err error) *Error {
	return newErr(KindInfrastructure, "StoreUnavailable", "store unavailable", err)
}

func ErrQueueUnavailable(err error) *Error {
	return newErr(KindInfrastructure, "QueueUnavailable", "queue unavailable", err)
}

func ErrTimeout(err error) *Error {
	return newErr(KindInfrastructure, "Timeout", "operation timed out", err)
}

func ErrCancelled(err error) *Error {
	return newErr(KindInfrastructure, "Cancelled", "operation cancelled", err)
}

// Is reports whether err is a domain *Error of the given code.
func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf extracts the Kind of a domain error, defaulting to
// KindInfrastructure for errors that did not originate here.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInfrastructure
}
