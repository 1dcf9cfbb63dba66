package orchestrator

import (
	"context"
	"time"

	"github.com/traffictacos/ticketing-core/internal/store"
)

// idempotencyLedger generalizes the teacher's IdempotencyItem /
// GetIdempotency / PutIdempotency pair (internal/repo/dynamodb.go in
// the teacher) into a dedup-key lookup the orchestrator consults
// before re-running a terminal transition. A redelivered queue
// message or a retried mark-sold/mark-complimentary call is answered
// from the ledger instead of re-executing the seat-assignment
// protocol a second time.
type idempotencyLedger struct {
	kv store.KVStore
}

type idempotencyRecord struct {
	Key       string
	Operation string
	OrderID   string
	CreatedAt time.Time
}

// check looks up key and reports whether the operation already ran to
// completion. It never claims the key itself: claiming happens only
// after the caller's writes have committed (see claim), so a failed
// operation leaves the key free for the next retry/redelivery to make
// progress instead of being silently swallowed as a false no-op.
func (l *idempotencyLedger) check(ctx context.Context, key string) (idempotencyRecord, bool, error) {
	existing, err := l.kv.Get(ctx, idempotencyTable, store.Item{"key": key})
	if err != nil {
		return idempotencyRecord{}, false, err
	}
	if existing != nil {
		return decodeIdempotency(existing), true, nil
	}
	return idempotencyRecord{}, false, nil
}

// claim records that operation has finished for orderID, to be called
// only once every write the operation makes has already committed. A
// losing race against a concurrent claim of the same key is not an
// error: the other caller's work completed too, so there is nothing
// left to undo.
func (l *idempotencyLedger) claim(ctx context.Context, key, operation, orderID string, now time.Time) error {
	err := l.kv.PutIf(ctx, idempotencyTable, store.Item{
		"key": key, "operation": operation, "order_id": orderID, "created_at": now,
	}, store.NotExists{})
	if err == store.ErrPreconditionFailed {
		return nil
	}
	return err
}

func decodeIdempotency(item store.Item) idempotencyRecord {
	return idempotencyRecord{
		Key:       toString(item["key"]),
		Operation: toString(item["operation"]),
		OrderID:   toString(item["order_id"]),
	}
}
