package store

// The types below are the common conditional-expression vocabulary
// every KVStore adapter understands, so use-case code can build one
// Predicate/Mutation value and hand it to whichever adapter
// (DynamoDB, in-memory fake) is wired in, without adapter-specific
// branches in the orchestrator/inventory/seating packages.

// NotExists is satisfied when the row at the target key does not yet
// exist. It is the uniqueness gate for SeatReservations (spec.md
// §4.2).
type NotExists struct{}

// FieldEquals is satisfied when item[Field] == Value.
type FieldEquals struct {
	Field string
	Value any
}

// FieldAbsent is satisfied when Field is not set on the item (used for
// "seat_number not set" in the TicketItem conditional update).
type FieldAbsent struct {
	Field string
}

// And composes predicates with logical AND; an empty And is always
// satisfied.
type And []Predicate

// KeyCondition restricts a Query to rows whose Field has the given
// Prefix, modeling the `SeatReservations` prefix scan of spec.md §4.2.
type KeyCondition struct {
	Field  string
	Prefix string
}

// Set assigns each named field unconditionally.
type Set map[string]any

// Incr adds the (possibly negative) delta to each named numeric field.
type Incr map[string]int

// Composite combines a Set and an Incr in one Mutation, matching the
// `SET x = x + :d, y = :v` shape DynamoDB update expressions use.
type Composite struct {
	Set  Set
	Incr Incr
}
