// Package memstore is an in-memory fake of the store.KVStore contract,
// used by unit and property-style tests so the hard properties in
// spec.md §8 can be exercised without a live DynamoDB table. It
// implements the same conditional/transactional semantics the real
// adapter relies on: version checks, not-exists preconditions, and
// all-or-nothing transact writes.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/traffictacos/ticketing-core/internal/store"
)

type row struct {
	item store.Item
}

// Store is a goroutine-safe in-memory KVStore.
type Store struct {
	mu     sync.Mutex
	tables map[string]map[string]row
}

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]map[string]row)}
}

func keyOf(key store.Item) string {
	parts := make([]string, 0, len(key))
	for k, v := range key {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// tableKeyFields declares each table's primary-key field names, the
// way a real DynamoDB table's KeySchema would at creation time. Put
// and PutIf receive a full item (key fields plus attributes); Get,
// UpdateIf, and Delete receive only the key fields. Without this
// schema, a Put's storage index (derived from every field) would
// never match a later Get's index (derived from the key alone).
var tableKeyFields = map[string][]string{
	"TicketInventory":            {"event_id", "ticket_type"},
	"Events":                     {"event_id"},
	"TicketOrders":               {"order_id"},
	"TicketItems":                {"ticket_id"},
	"TicketReservations":         {"reservation_id"},
	"CustomerInfo":               {"order_id"},
	"TicketStateTransitionAudit": {"audit_id"},
	"SeatReservations":           {"seat_key"},
	"IdempotencyLedger":          {"key"},
	"inv":                        {"event_id"},
	"seats":                      {"seat_key"},
}

// storageKey computes the row index for a Put/PutIf item: the
// declared key fields only, falling back to the whole item for a
// table with no declared schema.
func storageKey(table string, item store.Item) string {
	fields, ok := tableKeyFields[table]
	if !ok {
		return keyOf(item)
	}
	key := make(store.Item, len(fields))
	for _, f := range fields {
		key[f] = item[f]
	}
	return keyOf(key)
}

func (s *Store) table(name string) map[string]row {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]row)
		s.tables[name] = t
	}
	return t
}

func merge(key, item store.Item) store.Item {
	out := store.Item{}
	for k, v := range key {
		out[k] = v
	}
	for k, v := range item {
		out[k] = v
	}
	return out
}

func clone(item store.Item) store.Item {
	out := make(store.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func evalPredicate(pred store.Predicate, existing store.Item, exists bool) error {
	if pred == nil {
		return nil
	}
	switch p := pred.(type) {
	case store.NotExists:
		if exists {
			return store.ErrPreconditionFailed
		}
		return nil
	case store.FieldEquals:
		if !exists {
			return store.ErrPreconditionFailed
		}
		if fmt.Sprintf("%v", existing[p.Field]) != fmt.Sprintf("%v", p.Value) {
			return store.ErrPreconditionFailed
		}
		return nil
	case store.FieldAbsent:
		if exists {
			if _, ok := existing[p.Field]; ok {
				return store.ErrPreconditionFailed
			}
		}
		return nil
	case store.And:
		for _, sub := range p {
			if err := evalPredicate(sub, existing, exists); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("memstore: unsupported predicate %T", pred)
	}
}

func applyMutation(existing store.Item, mut store.Mutation) (store.Item, error) {
	next := clone(existing)
	switch m := mut.(type) {
	case store.Composite:
		for k, v := range m.Set {
			next[k] = v
		}
		for k, d := range m.Incr {
			cur := toInt(next[k])
			next[k] = cur + d
		}
	case store.Set:
		for k, v := range m {
			next[k] = v
		}
	case store.Incr:
		for k, d := range m {
			cur := toInt(next[k])
			next[k] = cur + d
		}
	default:
		return nil, fmt.Errorf("memstore: unsupported mutation %T", mut)
	}
	return next, nil
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

func (s *Store) Get(_ context.Context, table string, key store.Item) (store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.table(table)[keyOf(key)]
	if !ok {
		return nil, nil
	}
	return clone(r.item), nil
}

func (s *Store) Put(_ context.Context, table string, item store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(table)[storageKey(table, item)] = row{item: clone(item)}
	return nil
}

func (s *Store) PutIf(_ context.Context, table string, item store.Item, cond store.Predicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := storageKey(table, item)
	existing, exists := s.table(table)[k]
	if err := evalPredicate(cond, existing.item, exists); err != nil {
		return err
	}
	s.table(table)[k] = row{item: clone(item)}
	return nil
}

func (s *Store) UpdateIf(_ context.Context, table string, key store.Item, mut store.Mutation, cond store.Predicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(key)
	existing, exists := s.table(table)[k]
	if err := evalPredicate(cond, existing.item, exists); err != nil {
		return err
	}
	base := existing.item
	if !exists {
		base = clone(key)
	}
	next, err := applyMutation(base, mut)
	if err != nil {
		return err
	}
	s.table(table)[k] = row{item: merge(key, next)}
	return nil
}

func (s *Store) Delete(_ context.Context, table string, key store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.table(table), keyOf(key))
	return nil
}

func (s *Store) Query(ctx context.Context, table, _ string, keyCond store.Predicate, filter store.Predicate) (store.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []store.Item
	for _, r := range s.table(table) {
		if kc, ok := keyCond.(store.KeyCondition); ok {
			v := fmt.Sprintf("%v", r.item[kc.Field])
			if !strings.HasPrefix(v, kc.Prefix) {
				continue
			}
		}
		if filter != nil {
			if evalPredicate(filter, r.item, true) != nil {
				continue
			}
		}
		items = append(items, clone(r.item))
	}
	return store.Page{Items: items}, nil
}

func (s *Store) Scan(ctx context.Context, table string, filter store.Predicate) (store.Page, error) {
	return s.Query(ctx, table, "", nil, filter)
}

// TransactWrite applies every item or fails the whole batch, matching
// DynamoDB TransactWriteItems all-or-nothing semantics (spec.md §4.2,
// §6).
func (s *Store) TransactWrite(_ context.Context, items []store.TransactItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reasons := make([]error, len(items))
	failed := false
	for i, it := range items {
		k := keyOf(it.Key)
		if it.Key == nil {
			k = storageKey(it.Table, it.Item)
		}
		existing, exists := s.table(it.Table)[k]
		if err := evalPredicate(it.Cond, existing.item, exists); err != nil {
			reasons[i] = err
			failed = true
		}
	}
	if failed {
		return &store.TransactCancelled{Reasons: reasons}
	}

	for _, it := range items {
		if it.Item != nil {
			s.table(it.Table)[storageKey(it.Table, it.Item)] = row{item: clone(it.Item)}
			continue
		}
		k := keyOf(it.Key)
		existing := s.table(it.Table)[k]
		next, err := applyMutation(existing.item, it.Mut)
		if err != nil {
			return err
		}
		if existing.item == nil {
			next = merge(it.Key, next)
		}
		s.table(it.Table)[k] = row{item: next}
	}
	return nil
}
